package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/charmbracelet/lipgloss"
)

var labelStyle = lipgloss.NewStyle().Bold(true).Width(10)

// ShareLinks returns the ways a photo can be shared, in display order.
func ShareLinks(img NormalizedImage) [][2]string {
	links := [][2]string{{"Unsplash", img.ExternalLink}}
	if img.Sources.Download != "" {
		links = append(links, [2]string{"Download", img.Sources.Download})
	}
	if img.AuthorProfileLink != "" {
		links = append(links, [2]string{"Author", img.AuthorProfileLink})
	}
	if img.ExternalLink != "" {
		text := img.AltText
		if img.AuthorName != "" {
			text += " by " + img.AuthorName
		}
		q := url.Values{}
		q.Set("text", text)
		q.Set("url", img.ExternalLink)
		links = append(links, [2]string{"Twitter", "https://twitter.com/intent/tweet?" + q.Encode()})
	}
	return links
}

func printPhoto(w io.Writer, img NormalizedImage) {
	row := func(label string, value any) {
		fmt.Fprintln(w, labelStyle.Render(label)+fmt.Sprint(value))
	}
	fmt.Fprintln(w, titleStyle.Render(img.AltText))
	if img.Description != "" {
		fmt.Fprintln(w, img.Description)
	}
	row("By", img.AuthorName)
	row("Size", fmt.Sprintf("%dx%d", img.OriginalWidth, img.OriginalHeight))
	row("Color", img.BackgroundColor)
	if img.Camera != "" {
		row("Camera", img.Camera)
	}
	if img.Location != "" {
		row("Location", img.Location)
	}
	row("Views", img.Views)
	row("Likes", img.Likes)
	for _, link := range ShareLinks(img) {
		row(link[0], link[1])
	}
}
