package models

// Image describes one entry of the shared image library.
type Image struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"bytes"`
}
