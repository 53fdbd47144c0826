package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// handleRegister creates a user account. Registration is disabled by
// default; single-operator deployments add users with the user-add command
// instead. MAILVAULT_DISABLE_REGISTRATION=false opens this endpoint.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DisableRegistration {
		writeError(w, http.StatusForbidden, "registration is disabled")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user, err := s.storage.Users.UserCreate(req.Username, string(hash))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "relational database error")
		return
	}

	s.log.Infof("registered user %q (id %d)", user.Username, user.ID)
	writeJSON(w, http.StatusCreated, registerResponse{ID: user.ID, Username: user.Username})
}
