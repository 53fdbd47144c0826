// Package archive is the storage-and-indexing core: it keeps the blob
// store, the metadata store and the search index mutually consistent for
// each ingested message. There is no transaction spanning the three stores;
// each step of the pipeline is individually durable and the repair actions
// in internal/actions are the compensating logic for crashes between steps.
package archive

import (
	"errors"
	"time"

	"github.com/gologme/log"
	"go.uber.org/atomic"

	"github.com/JB-SelfCompany/mailvault/internal/message"
	"github.com/JB-SelfCompany/mailvault/internal/search"
	"github.com/JB-SelfCompany/mailvault/internal/storage/blobstore"
	"github.com/JB-SelfCompany/mailvault/internal/storage/sqlite3"
)

type Archive struct {
	log     *log.Logger
	storage *sqlite3.SQLite3Storage
	blobs   *blobstore.BlobStore
	search  *search.Engine

	ingested     atomic.Uint64
	deduplicated atomic.Uint64
}

func New(logger *log.Logger, storage *sqlite3.SQLite3Storage, blobs *blobstore.BlobStore, engine *search.Engine) *Archive {
	return &Archive{
		log:     logger,
		storage: storage,
		blobs:   blobs,
		search:  engine,
	}
}

// Ingest archives one raw message for userID. Steps, each durable on its
// own: content hash, dedup check, blob write, metadata row, parse, search
// document. A message whose hash is already in the blob index is not
// re-persisted and no new metadata or search document is written, whichever
// user uploaded it first.
//
// If parsing fails the blob and metadata writes remain committed and a
// ParseError is returned: storage is at-least-once, search is at-most-once,
// and RebuildSearchIndex is the reconciliation path.
func (a *Archive) Ingest(userID int64, raw []byte) error {
	hash := blobstore.Hash(raw)

	exists, err := a.blobs.Exists(hash)
	if err != nil {
		return &StorageError{Err: err}
	}
	if exists {
		a.deduplicated.Inc()
		a.log.Debugf("dedup: content %s already archived", hash)
		return nil
	}

	if _, err := a.blobs.Put(raw); err != nil {
		return &StorageError{Err: err}
	}

	if _, err := a.storage.Messages.MessageCreate(userID, hash); err != nil {
		return &RelationalError{Err: err}
	}

	parsed, err := message.Parse(raw)
	if err != nil {
		return &ParseError{Err: err}
	}

	model := message.Project(parsed)
	doc := search.Document{
		Hash:    hash,
		UserID:  userID,
		From:    model.From,
		To:      model.To,
		Cc:      model.Cc,
		Bcc:     model.Bcc,
		Subject: model.Subject,
		Date:    time.Unix(model.TimestampSecs, 0).UTC(),
		Content: model.Content,
	}
	if err := a.search.Index(doc); err != nil {
		return &SearchError{Err: err}
	}

	a.ingested.Inc()
	a.log.Debugf("archived content %s for user %d", hash, userID)
	return nil
}

// ReadRaw returns the original message bytes for a content hash.
func (a *Archive) ReadRaw(hash string) ([]byte, error) {
	data, err := a.blobs.Get(hash)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, &NotFoundError{What: "message"}
		}
		return nil, &StorageError{Err: err}
	}
	return data, nil
}

// Info is the structured view of an archived message.
type Info struct {
	Hash           string `json:"hash"`
	From           string `json:"from"`
	To             string `json:"to"`
	Cc             string `json:"cc"`
	Bcc            string `json:"bcc"`
	Subject        string `json:"subject"`
	Date           string `json:"date"`
	IsHTMLMail     bool   `json:"is_html_mail"`
	IsTextMail     bool   `json:"is_text_mail"`
	HasAttachments bool   `json:"has_attachments"`
}

// ReadInfo parses the stored message and returns its projected headers.
func (a *Archive) ReadInfo(hash string) (*Info, error) {
	raw, err := a.ReadRaw(hash)
	if err != nil {
		return nil, err
	}
	parsed, err := message.Parse(raw)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	model := message.Project(parsed)
	return &Info{
		Hash:           hash,
		From:           model.From,
		To:             model.To,
		Cc:             model.Cc,
		Bcc:            model.Bcc,
		Subject:        model.Subject,
		Date:           time.Unix(model.TimestampSecs, 0).UTC().Format(time.RFC3339),
		IsHTMLMail:     model.IsHTML,
		IsTextMail:     model.IsText,
		HasAttachments: model.HasAttachments,
	}, nil
}

// ReadContent returns the joined message bodies, HTML or plain text.
func (a *Archive) ReadContent(hash string, html bool) (string, error) {
	raw, err := a.ReadRaw(hash)
	if err != nil {
		return "", err
	}
	parsed, err := message.Parse(raw)
	if err != nil {
		return "", &ParseError{Err: err}
	}
	return message.ProjectContent(parsed, html), nil
}

// SearchMessages queries the full-text index. Results are not scoped to the
// requesting user: the archive searches all indexed documents, matching the
// single-archive deployment model.
func (a *Archive) SearchMessages(query string, page, perPage int) (*search.ResultPage, error) {
	result, err := a.search.Search(query, page, perPage)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	return result, nil
}
