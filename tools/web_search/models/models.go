package models

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"href"`
	Snippet string `json:"body,omitempty"`
}
