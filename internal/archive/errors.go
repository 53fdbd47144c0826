package archive

import "fmt"

// The archive never swallows a store failure: every error from a backing
// store is returned wrapped in the most specific kind below, and the caller
// (HTTP layer or repair CLI) decides on user-visible messaging.

// StorageError is a blob store transaction or I/O failure. Fatal to the
// enclosing operation; never retried internally.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("blob storage: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// RelationalError is a metadata store failure, including constraint
// violations such as a duplicate username.
type RelationalError struct {
	Err error
}

func (e *RelationalError) Error() string { return fmt.Sprintf("relational storage: %v", e.Err) }
func (e *RelationalError) Unwrap() error { return e.Err }

// SearchError is a search index write or query failure.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string { return fmt.Sprintf("search index: %v", e.Err) }
func (e *SearchError) Unwrap() error { return e.Err }

// ParseError means the message bytes do not parse as a valid email. When it
// is returned from Ingest the blob and metadata writes have already
// committed; RebuildSearchIndex reconciles the index later.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("unreadable message content: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError means a content hash or id has no corresponding record.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found", e.What) }
