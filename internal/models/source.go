package models

// Source is a web source surfaced by the search tool and cited in reports.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
