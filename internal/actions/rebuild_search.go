package actions

import (
	"fmt"
	"time"

	"github.com/gologme/log"

	"github.com/JB-SelfCompany/mailvault/internal/logging"
	"github.com/JB-SelfCompany/mailvault/internal/message"
	"github.com/JB-SelfCompany/mailvault/internal/search"
	"github.com/JB-SelfCompany/mailvault/internal/storage/blobstore"
	"github.com/JB-SelfCompany/mailvault/internal/storage/sqlite3"
)

// RebuildSearchIndex discards the search index and regenerates it from the
// metadata store and the blob store. The index holds nothing that cannot be
// re-derived from the other two, so this is the recovery path for index
// corruption and schema changes. A stored blob that fails to parse aborts
// the rebuild: an unreadable archived message means corruption worth
// halting on, and a partial rebuild is worse than a restartable one.
// Returns the number of documents indexed.
func RebuildSearchIndex(logger *log.Logger, storage *sqlite3.SQLite3Storage, blobs *blobstore.BlobStore, engine *search.Engine) (int, error) {
	if err := engine.Reset(); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}

	records, err := storage.Messages.MessageList()
	if err != nil {
		return 0, fmt.Errorf("list metadata records: %w", err)
	}

	progress := logging.NewProgress(logger, "rebuild-search-index", 100)
	indexed := 0
	for _, record := range records {
		raw, err := blobs.Get(record.ContentHash)
		if err != nil {
			return indexed, fmt.Errorf("read blob %s: %w", record.ContentHash, err)
		}

		parsed, err := message.Parse(raw)
		if err != nil {
			return indexed, fmt.Errorf("cannot parse message %s: %w", record.ContentHash, err)
		}
		model := message.Project(parsed)

		doc := search.Document{
			Hash:    record.ContentHash,
			UserID:  record.UserID,
			From:    model.From,
			To:      model.To,
			Cc:      model.Cc,
			Bcc:     model.Bcc,
			Subject: model.Subject,
			Date:    time.Unix(model.TimestampSecs, 0).UTC(),
			Content: model.Content,
		}
		if err := engine.Index(doc); err != nil {
			return indexed, fmt.Errorf("index message %s: %w", record.ContentHash, err)
		}

		logger.Debugf("reindexed message: %s", record.ContentHash)
		indexed++
		progress.Step(int64(len(raw)))
	}
	progress.Done()

	logger.Infof("rebuild-search-index: %d documents indexed", indexed)
	return indexed, nil
}
