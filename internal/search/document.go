package search

import "time"

// Document is the denormalized projection of one message as stored in the
// full-text index. The index key is the content hash, so re-indexing the
// same message overwrites rather than duplicates.
type Document struct {
	Hash    string    `json:"hash"`
	UserID  int64     `json:"user_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Cc      string    `json:"cc"`
	Bcc     string    `json:"bcc"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Content string    `json:"content"`
}

// Hit is one search result with its stored fields.
type Hit struct {
	Hash    string    `json:"hash"`
	UserID  int64     `json:"user_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Cc      string    `json:"cc"`
	Bcc     string    `json:"bcc"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Score   float64   `json:"score"`
}

// ResultPage is one page of ranked results.
type ResultPage struct {
	Total      uint64 `json:"total"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
	Hits       []Hit  `json:"hits"`
}
