package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/logging"
	"github.com/JonMunkholm/userimport/internal/session"
)

var errBadRequest = errors.New("invalid request body")

// multipartOverhead is the slack allowed on top of the file size limit for
// form boundaries and headers.
const multipartOverhead = 1 << 20

// sessionResponse is a session snapshot plus, for failed validation rows,
// the row each one came from in the uploaded file.
type sessionResponse struct {
	session.Snapshot
	SourceRows map[int]int `json:"sourceRows,omitempty"`
}

func (s *Server) respondSession(w http.ResponseWriter, status int, sess *session.Session) {
	resp := sessionResponse{Snapshot: sess.Snapshot()}
	if v := resp.Validation; v != nil && len(v.Failed) > 0 {
		resp.SourceRows = make(map[int]int, len(v.Failed))
		for _, f := range v.Failed {
			if row, ok := sess.SourceRow(f.Row); ok {
				resp.SourceRows[f.Row] = row
			}
		}
	}
	writeJSON(w, status, resp)
}

// lookup resolves the {sessionID} path parameter, writing the error response
// itself when the session is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return sess, true
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, multipartOverhead)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "session_id", sess.ID()).Info("session created")
	s.respondSession(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload reads the multipart "file" field into the session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := sess.Upload(fileName, data); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, &core.SizeLimitError{Size: r.ContentLength, Limit: maxSize}
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return "", nil, core.ErrNoFile
		}
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, core.ErrNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

type filterRequest struct {
	Term string `json:"term"`
}

type filterResponse struct {
	Entries []session.Entry `json:"entries"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	visible, err := sess.Filter(req.Term)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filterResponse{Entries: visible})
}

type selectionRequest struct {
	Keys []string `json:"keys"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := sess.Select(req.Keys); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

// handleValidate runs validation. Rows that fail are part of a normal
// response; only transport and state errors are reported as errors.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if _, err := sess.Validate(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if _, err := sess.Import(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if !sess.Cancel() {
		s.respondError(w, r, fmt.Errorf("cancel with no call outstanding: %w", session.ErrInvalidTransition))
		return
	}
	s.respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	sess.Reset()
	s.respondSession(w, http.StatusOK, sess)
}

type usersResponse struct {
	Users []core.User `json:"users"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.gateway.GetAllUsers(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if users == nil {
		users = []core.User{}
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	u, err := s.gateway.GetUserByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUserByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := s.gateway.GetUserByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
