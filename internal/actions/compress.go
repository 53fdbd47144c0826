// Package actions holds the offline repair procedures that re-derive one
// store's state from another. They assume exclusive access to the stores:
// run them in a maintenance window, never alongside live ingestion.
package actions

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gologme/log"

	"github.com/JB-SelfCompany/mailvault/internal/logging"
	"github.com/JB-SelfCompany/mailvault/internal/storage/blobstore"
)

// Compress rewrites every legacy uncompressed blob in its compressed form.
// Already-compressed blobs are left untouched, so a second run is a no-op
// scan. Returns the number of blobs recompressed.
func Compress(logger *log.Logger, blobs *blobstore.BlobStore) (int, error) {
	yellow := color.New(color.FgYellow).SprintfFunc()

	// Candidates are collected under a read transaction first; the write
	// transactions follow separately to keep bbolt happy about mixing
	// views and updates on one goroutine.
	type candidate struct {
		id   uint64
		data []byte
	}
	var candidates []candidate

	progress := logging.NewProgress(logger, "compress scan", 100)
	err := blobs.ForEachBlob(func(id uint64, payload []byte) error {
		progress.Step(int64(len(payload)))
		data, compressed := blobs.Decode(payload)
		if compressed {
			logger.Debugf("blob %d already compressed", id)
			return nil
		}
		logger.Infof("found uncompressed blob %s", yellow("%d", id))
		candidates = append(candidates, candidate{id: id, data: data})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan blobs: %w", err)
	}
	progress.Done()

	for _, c := range candidates {
		if err := blobs.Recompress(c.id, blobs.Encode(c.data)); err != nil {
			return 0, fmt.Errorf("recompress blob %d: %w", c.id, err)
		}
	}

	logger.Infof("compress: %d of %d blobs recompressed", len(candidates), progress.Count())
	return len(candidates), nil
}
