package httpserver

import (
	"net/http"
	"strconv"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)

	result, err := s.archive.SearchMessages(query, page, perPage)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type statsResponse struct {
	Version        string `json:"version"`
	DbSize         int64  `json:"db_size"`
	BlobDbSize     int64  `json:"blob_db_size"`
	MessageCount   int64  `json:"message_count"`
	BlobCount      uint64 `json:"blob_count"`
	SearchDocCount uint64 `json:"search_doc_count"`
	Ingested       uint64 `json:"ingested"`
	Deduplicated   uint64 `json:"deduplicated"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.archive.Stats()
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Version:        Version,
		DbSize:         stats.DbSize,
		BlobDbSize:     stats.BlobDbSize,
		MessageCount:   stats.MessageCount,
		BlobCount:      stats.BlobCount,
		SearchDocCount: stats.SearchDocCount,
		Ingested:       stats.Ingested,
		Deduplicated:   stats.Deduplicated,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
