package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/catalog"
	"github.com/accionlabs/intelhub/internal/dataset"
	"github.com/accionlabs/intelhub/internal/models"
)

// multipartOverhead is allowed on top of the file cap for form fields and boundaries.
const multipartOverhead = 1 << 20

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html"`
}

type uploadResponse struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Summary   string `json:"summary"`
}

func (s *Server) maxUploadBytes() int64 {
	if s.config.Chat.MaxUploadBytes > 0 {
		return s.config.Chat.MaxUploadBytes
	}
	return dataset.DefaultMaxBytes
}

func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, dataset.ErrTooLarge.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "form field file is required")
		return
	}
	defer file.Close()

	if !dataset.Supported(header.Filename) {
		s.respondError(w, http.StatusBadRequest, dataset.ErrUnsupportedType.Error())
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	ds, err := dataset.Parse(header.Filename, content, limit)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, dataset.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.logger.Warn("dataset upload rejected", zap.String("file", header.Filename), zap.Error(err))
		s.respondError(w, status, err.Error())
		return
	}

	description := strings.TrimSpace(r.FormValue("description"))
	sess := s.sessions.Create(ds, description, strings.TrimSpace(r.FormValue("system_instruction")), nil)
	summary := s.chat.Summarize(r.Context(), ds, description)
	s.logger.Info("dataset uploaded",
		zap.String("session", sess.ID),
		zap.String("file", ds.Name),
		zap.Int("rows", ds.Len()))

	s.respondJSON(w, http.StatusCreated, uploadResponse{
		SessionID: sess.ID,
		Name:      ds.Name,
		Rows:      ds.Len(),
		Summary:   summary,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session": sess,
		"rows":    sess.Dataset.Len(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.chat.Chat(r.Context(), req.Question, sess.Dataset, sess.Description, sess.SystemInstruction)
	if err != nil {
		s.respondModelError(w, err)
		return
	}
	now := time.Now()
	s.sessions.Append(id,
		models.Message{Sender: "user", Text: strings.TrimSpace(req.Question), At: now},
		models.Message{Sender: "bot", Text: answer, At: now})
	s.respondJSON(w, http.StatusOK, s.answerResponse(answer))
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"tabs": s.catalog.Tabs()})
}

func (s *Server) handleTabChat(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.Get(chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, catalog.ErrUnknownTab):
		s.respondError(w, http.StatusNotFound, "tab not found")
		return
	case errors.Is(err, catalog.ErrTabNotReady):
		s.respondError(w, http.StatusServiceUnavailable, "data for tab "+entry.Config.Name+" is not loaded")
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.chat.Chat(r.Context(), req.Question, entry.Dataset, entry.Config.Description, entry.Config.SystemInstruction)
	if err != nil {
		s.respondModelError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.answerResponse(answer))
}

func (s *Server) answerResponse(answer string) chatResponse {
	html, err := s.markdown.Render(answer)
	if err != nil {
		s.logger.Warn("failed to render answer", zap.Error(err))
	}
	return chatResponse{Answer: answer, AnswerHTML: html}
}
