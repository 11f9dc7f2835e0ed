package types

// ContentMetadata describes a content item without its body.
type ContentMetadata struct {
	// Slug is the stable, URL-safe item identifier
	Slug string `json:"slug"`

	// Title defaults to "Untitled"
	Title string `json:"title"`

	// Date is the publication date as written in front matter
	Date string `json:"date"`

	Excerpt string `json:"excerpt,omitempty"`
	Author  string `json:"author,omitempty"`

	// ReadingTime is a human string such as "3 min read"
	ReadingTime string `json:"reading_time"`
}

// ContentItem is a content item with the raw body handed to the renderer.
type ContentItem struct {
	ContentMetadata
	Body string `json:"body"`
}
