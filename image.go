package main

import "context"

type ImageSources struct {
	Thumb    string `json:"thumb"`
	Small    string `json:"small"`
	Regular  string `json:"regular"`
	Full     string `json:"full"`
	Raw      string `json:"raw"`
	WebpHigh string `json:"webpHigh,omitempty"`
	WebpLow  string `json:"webpLow,omitempty"`
	JpgHigh  string `json:"jpgHigh,omitempty"`
	JpgLow   string `json:"jpgLow,omitempty"`
	Download string `json:"download,omitempty"`
}

// NormalizedImage is one photo record as the gallery renders it. Instances
// are only produced by Normalize, so ID is never empty.
type NormalizedImage struct {
	ID                string       `json:"id"`
	AltText           string       `json:"alt"`
	Description       string       `json:"description,omitempty"`
	OriginalWidth     int          `json:"originalWidth"`
	OriginalHeight    int          `json:"originalHeight"`
	BackgroundColor   string       `json:"backgroundColor"`
	Sources           ImageSources `json:"src"`
	ExternalLink      string       `json:"externalLink"`
	AuthorName        string       `json:"userName"`
	AuthorProfileLink string       `json:"userLink"`
	AuthorAvatarURL   string       `json:"userImage"`
	Camera            string       `json:"camera,omitempty"`
	Location          string       `json:"location,omitempty"`
	Views             int          `json:"views,omitempty"`
	Likes             int          `json:"likes,omitempty"`
}

// ImageCollection is the gallery content. TotalPages is nil while browsing
// the unfiltered listing, which has no known end.
type ImageCollection struct {
	TotalPages *int              `json:"totalPages"`
	Items      []NormalizedImage `json:"items"`
}

// Page is the result of fetching one page of photos.
type Page struct {
	TotalPages *int
	Items      []NormalizedImage
}

// PhotoFetcher fetches one page of the unfiltered listing (empty keyword) or
// of a keyword search.
type PhotoFetcher interface {
	FetchPage(ctx context.Context, page int, keyword string) (Page, error)
}

func (c *ImageCollection) replace(p Page) {
	c.TotalPages = p.TotalPages
	c.Items = append([]NormalizedImage(nil), p.Items...)
}

// appendPage adds the items of a later page, skipping ids the collection
// already holds. The listing endpoint occasionally repeats photos across
// pages.
func (c *ImageCollection) appendPage(p Page) {
	c.TotalPages = p.TotalPages
	seen := make(map[string]struct{}, len(c.Items))
	for _, img := range c.Items {
		seen[img.ID] = struct{}{}
	}
	for _, img := range p.Items {
		if _, dup := seen[img.ID]; dup {
			continue
		}
		seen[img.ID] = struct{}{}
		c.Items = append(c.Items, img)
	}
}

func intPtr(n int) *int {
	return &n
}
