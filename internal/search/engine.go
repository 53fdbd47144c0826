// Package search maintains the full-text index over projected messages. The
// index is derived state: it can always be discarded and rebuilt from the
// metadata and blob stores, which is the canonical recovery path after
// corruption or a schema change.
package search

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// searchFields are the fields a query term is matched against. The hash,
// user id and date fields are stored but not searched.
var searchFields = []string{"from", "to", "cc", "bcc", "subject", "content"}

const defaultPerPage = 10

// Engine wraps the bleve index. Writes go through a single guarded handle:
// Index and Reset take the mutex, readers search the last committed
// snapshot and never block on writers.
type Engine struct {
	path string

	mu  sync.Mutex
	idx bleve.Index
}

func Open(path string) (*Engine, error) {
	e := &Engine{path: path}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		e.idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("bleve.Open: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		e.idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("bleve.New: %w", err)
		}
	default:
		return nil, fmt.Errorf("os.Stat: %w", err)
	}

	return e, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	hash := bleve.NewTextFieldMapping()
	hash.Analyzer = keyword.Name

	userID := bleve.NewNumericFieldMapping()
	date := bleve.NewDateTimeFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("hash", hash)
	doc.AddFieldMappingsAt("user_id", userID)
	doc.AddFieldMappingsAt("date", date)
	for _, field := range searchFields {
		doc.AddFieldMappingsAt(field, text)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx.Close()
}

// Index adds one document and makes it durable before returning. Documents
// are committed one at a time: ingestion trades write throughput for
// immediate visibility.
func (e *Engine) Index(doc Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.idx.Index(doc.Hash, doc); err != nil {
		return fmt.Errorf("index.Index: %w", err)
	}
	return nil
}

// Search runs query against the searchable fields and returns the requested
// page. page < 1 is treated as 1 and perPage < 1 as 10.
func (e *Engine) Search(query string, page, perPage int) (*ResultPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	disjunction := bleve.NewDisjunctionQuery()
	for _, field := range searchFields {
		match := bleve.NewMatchQuery(query)
		match.SetField(field)
		disjunction.AddQuery(match)
	}

	req := bleve.NewSearchRequestOptions(disjunction, perPage, (page-1)*perPage, false)
	req.Fields = []string{"*"}

	res, err := e.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("index.Search: %w", err)
	}

	result := &ResultPage{
		Total:      res.Total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: TotalPages(res.Total, perPage),
	}
	for _, hit := range res.Hits {
		h := Hit{
			Hash:    hit.ID,
			From:    fieldString(hit.Fields, "from"),
			To:      fieldString(hit.Fields, "to"),
			Cc:      fieldString(hit.Fields, "cc"),
			Bcc:     fieldString(hit.Fields, "bcc"),
			Subject: fieldString(hit.Fields, "subject"),
			Score:   hit.Score,
		}
		if v, ok := hit.Fields["user_id"].(float64); ok {
			h.UserID = int64(v)
		}
		if v, ok := hit.Fields["date"].(string); ok {
			if date, err := time.Parse(time.RFC3339, v); err == nil {
				h.Date = date
			}
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// TotalPages returns ceil(total / perPage).
func TotalPages(total uint64, perPage int) int {
	if total == 0 {
		return 0
	}
	return int((total + uint64(perPage) - 1) / uint64(perPage))
}

func (e *Engine) DocCount() (uint64, error) {
	count, err := e.idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("index.DocCount: %w", err)
	}
	return count, nil
}

// Reset discards the entire index and recreates it empty. Only the search
// rebuild action calls this, during a maintenance window.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.idx.Close(); err != nil {
		return fmt.Errorf("index.Close: %w", err)
	}
	if err := os.RemoveAll(e.path); err != nil {
		return fmt.Errorf("os.RemoveAll: %w", err)
	}
	idx, err := bleve.New(e.path, buildMapping())
	if err != nil {
		return fmt.Errorf("bleve.New: %w", err)
	}
	e.idx = idx
	return nil
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
