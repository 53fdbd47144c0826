package httpserver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JB-SelfCompany/mailvault/internal/storage/types"
)

type addItemResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"` // "archived" or "failed"
	Error    string `json:"error,omitempty"`
}

type addResponse struct {
	Items []addItemResult `json:"items"`
}

// handleAddMessages ingests each file of a multipart upload as one message.
// A failure is reported per item and does not abort the rest of the batch;
// importers retry or log individual items.
func (s *Server) handleAddMessages(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart body required")
		return
	}

	var resp addResponse
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		filename := part.FileName()
		data, err := readMessage(part, types.MaxMessageSize)
		if err != nil {
			resp.Items = append(resp.Items, addItemResult{Filename: filename, Status: "failed", Error: err.Error()})
			continue
		}
		s.log.Debugf("upload %q: %d bytes", filename, len(data))

		if err := s.archive.Ingest(user.ID, data); err != nil {
			s.log.Warnf("ingest %q: %v", filename, err)
			resp.Items = append(resp.Items, addItemResult{Filename: filename, Status: "failed", Error: err.Error()})
			continue
		}
		resp.Items = append(resp.Items, addItemResult{Filename: filename, Status: "archived"})
	}

	writeJSON(w, http.StatusOK, resp)
}

// readMessage reads one uploaded message. A message over limit is rejected
// outright rather than truncated: a truncated prefix would be archived under
// its own content hash and become durable garbage.
func readMessage(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("message exceeds the %d byte limit", limit)
	}
	return data, nil
}

type contentResponse struct {
	Content string `json:"content"`
}

func (s *Server) handleMessageRaw(w http.ResponseWriter, r *http.Request) {
	data, err := s.archive.ReadRaw(chi.URLParam(r, "hash"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: string(data)})
}

func (s *Server) handleMessageText(w http.ResponseWriter, r *http.Request) {
	content, err := s.archive.ReadContent(chi.URLParam(r, "hash"), false)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: content})
}

func (s *Server) handleMessageHTML(w http.ResponseWriter, r *http.Request) {
	content, err := s.archive.ReadContent(chi.URLParam(r, "hash"), true)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: content})
}

func (s *Server) handleMessageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.archive.ReadInfo(chi.URLParam(r, "hash"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
