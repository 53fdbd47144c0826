package actions

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gologme/log"

	"github.com/JB-SelfCompany/mailvault/internal/logging"
	"github.com/JB-SelfCompany/mailvault/internal/storage/blobstore"
	"github.com/JB-SelfCompany/mailvault/internal/storage/sqlite3"
)

// RebuildMessages inserts a metadata record, owned by defaultUsername, for
// every content hash in the blob index that no record references. This
// recovers from a crash between the blob commit and the metadata insert;
// the true owner was lost with the crash, so ownership is approximated to
// the configured default. Hashes that already have a record are skipped,
// making reruns no-ops. Returns the number of records recovered.
func RebuildMessages(logger *log.Logger, storage *sqlite3.SQLite3Storage, blobs *blobstore.BlobStore, defaultUsername string) (int, error) {
	user, err := storage.Users.UserByUsername(defaultUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("default user %q not found", defaultUsername)
		}
		return 0, fmt.Errorf("look up default user: %w", err)
	}

	progress := logging.NewProgress(logger, "rebuild-messages", 100)
	recovered := 0
	err = blobs.ForEachHash(func(hash string) error {
		progress.Step(0)
		count, err := storage.Messages.MessageCountByHash(hash)
		if err != nil {
			return fmt.Errorf("count records for %s: %w", hash, err)
		}
		if count > 0 {
			return nil
		}
		if _, err := storage.Messages.MessageCreate(user.ID, hash); err != nil {
			return fmt.Errorf("insert record for %s: %w", hash, err)
		}
		logger.Infof("recovered missing message: %s", hash)
		recovered++
		return nil
	})
	if err != nil {
		return recovered, err
	}
	progress.Done()

	logger.Infof("rebuild-messages: %d records recovered for user %q", recovered, defaultUsername)
	return recovered, nil
}
