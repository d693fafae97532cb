package main

import (
	"fmt"
	"strings"
)

// NoAltText stands in for a missing alt_description. Records carrying it are
// rejected.
const NoAltText = "--No alt text provided--"

const defaultImageOptions = "crop=entropy&fit=max&cs=tinysrgb&auto=compress&q=85"

type NormalizeResult struct {
	Valid  bool
	Image  NormalizedImage
	Reason string
}

func invalid(reason string) NormalizeResult {
	return NormalizeResult{Reason: reason}
}

// Normalize validates one raw record and derives the gallery representation.
func Normalize(raw UnsplashPhoto) NormalizeResult {
	alt := NoAltText
	if raw.AltDescription != nil {
		alt = *raw.AltDescription
	}
	switch {
	case raw.Id == "":
		return invalid("missing id")
	case raw.Urls.Small == "":
		return invalid("missing low resolution url")
	case alt == NoAltText:
		return invalid("missing alt text")
	case raw.Width <= 0 || raw.Height <= 0:
		return invalid("missing dimensions")
	}

	color := raw.Color
	if color == "" {
		color = "#fff"
	}
	img := NormalizedImage{
		ID:              raw.Id,
		AltText:         alt,
		OriginalWidth:   raw.Width,
		OriginalHeight:  raw.Height,
		BackgroundColor: color,
		Sources: ImageSources{
			Thumb:   raw.Urls.Thumb,
			Small:   raw.Urls.Small,
			Regular: raw.Urls.Regular,
			Full:    raw.Urls.Full,
			Raw:     raw.Urls.Raw,
		},
		ExternalLink:      raw.Links.Html,
		AuthorName:        raw.User.Name,
		AuthorProfileLink: raw.User.Links.Html,
		AuthorAvatarURL:   raw.User.ProfileImage.Small,
		Views:             raw.Views,
		Likes:             raw.Likes,
	}
	if raw.Description != nil {
		img.Description = *raw.Description
	}
	if raw.Location != nil {
		img.Location = raw.Location.Name
	}
	if raw.Exif != nil {
		img.Camera = strings.TrimSpace(raw.Exif.Make + " " + raw.Exif.Model)
	}
	if raw.Urls.Raw != "" {
		img.Sources.WebpHigh = derivedURL(raw.Urls.Raw, 1080, "webp")
		img.Sources.WebpLow = derivedURL(raw.Urls.Raw, 800, "webp")
		img.Sources.JpgHigh = derivedURL(raw.Urls.Raw, 1080, "jpg")
		img.Sources.JpgLow = derivedURL(raw.Urls.Raw, 800, "jpg")
		img.Sources.Download = raw.Urls.Raw
	}
	return NormalizeResult{Valid: true, Image: img}
}

// raw urls already carry an ixid query parameter
func derivedURL(raw string, width int, format string) string {
	sep := "&"
	if !strings.Contains(raw, "?") {
		sep = "?"
	}
	return fmt.Sprintf("%s%s%s&w=%d&fm=%s", raw, sep, defaultImageOptions, width, format)
}

// NormalizeAll keeps the valid records of raws in their original order.
func NormalizeAll(raws []UnsplashPhoto) ([]NormalizedImage, []NormalizeResult) {
	out := make([]NormalizedImage, 0, len(raws))
	var rejected []NormalizeResult
	for _, raw := range raws {
		res := Normalize(raw)
		if !res.Valid {
			rejected = append(rejected, res)
			continue
		}
		out = append(out, res.Image)
	}
	return out, rejected
}
