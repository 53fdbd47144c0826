package archive

// Stats is the operational monitoring surface: raw file sizes of the two
// store files, live counts from each store, and process-lifetime ingestion
// counters.
type Stats struct {
	DbSize         int64  `json:"db_size"`
	BlobDbSize     int64  `json:"blob_db_size"`
	MessageCount   int64  `json:"message_count"`
	BlobCount      uint64 `json:"blob_count"`
	SearchDocCount uint64 `json:"search_doc_count"`
	Ingested       uint64 `json:"ingested"`
	Deduplicated   uint64 `json:"deduplicated"`
}

func (a *Archive) Stats() (*Stats, error) {
	dbSize, err := a.storage.Size()
	if err != nil {
		return nil, &RelationalError{Err: err}
	}
	blobDbSize, err := a.blobs.Size()
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	messageCount, err := a.storage.Messages.MessageCount()
	if err != nil {
		return nil, &RelationalError{Err: err}
	}
	blobCount, err := a.blobs.Count()
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	searchDocCount, err := a.search.DocCount()
	if err != nil {
		return nil, &SearchError{Err: err}
	}

	return &Stats{
		DbSize:         dbSize,
		BlobDbSize:     blobDbSize,
		MessageCount:   messageCount,
		BlobCount:      blobCount,
		SearchDocCount: searchDocCount,
		Ingested:       a.ingested.Load(),
		Deduplicated:   a.deduplicated.Load(),
	}, nil
}
