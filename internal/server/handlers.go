package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/chat"
	"github.com/accionlabs/intelhub/internal/digest"
	"github.com/accionlabs/intelhub/internal/export"
	"github.com/accionlabs/intelhub/internal/gemini"
	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/retry"
	"github.com/accionlabs/intelhub/internal/search"
	"github.com/accionlabs/intelhub/internal/storage"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tabs := s.catalog.Tabs()
	ready := 0
	for _, t := range tabs {
		if t.Ready {
			ready++
		}
	}
	resp := map[string]interface{}{
		"digests_this_month": s.archive.CountCurrentMonth(ctx),
		"sessions":           s.sessions.Len(),
		"tabs":               len(tabs),
		"tabs_ready":         ready,
		"model":              s.config.AI.Model,
	}
	if n, err := s.index.DocCount(); err == nil {
		resp["indexed_digests"] = n
	} else {
		s.logger.Warn("status: index count failed", zap.Error(err))
	}

	usage, err := storage.MeasureUsage(s.config.Storage.DatabasePath, s.config.Storage.SearchIndexPath)
	if err == nil {
		resp["disk_usage"] = usage
		resp["disk_usage_bytes"] = usage.Total()
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type generateDigestRequest struct {
	Company string `json:"company"`
}

func (s *Server) handleGenerateDigest(w http.ResponseWriter, r *http.Request) {
	var req generateDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	company := strings.Join(strings.Fields(req.Company), " ")
	if company == "" {
		s.respondError(w, http.StatusBadRequest, digest.ErrEmptyCompany.Error())
		return
	}
	s.logger.Debug("generate digest request", zap.String("company", company))

	// The shared call outlives any single waiting request.
	ch := s.inflight.DoChan(strings.ToLower(company), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.generateTimeout())
		defer cancel()
		return s.generateAndSave(ctx, company)
	})
	select {
	case <-r.Context().Done():
		s.logger.Warn("digest request ended before generation finished",
			zap.String("company", company), zap.Error(r.Context().Err()))
	case res := <-ch:
		if res.Err != nil {
			s.respondModelError(w, res.Err)
			return
		}
		s.respondJSON(w, http.StatusCreated, res.Val)
	}
}

func (s *Server) generateAndSave(ctx context.Context, company string) (*models.Digest, error) {
	d, err := s.digests.GenerateDigest(ctx, company)
	if err != nil {
		return nil, err
	}
	if s.archive.Save(ctx, d) {
		if err := s.index.Index(ctx, s.archive.Key(d.CompanyName), d); err != nil {
			s.logger.Warn("failed to index digest", zap.String("id", d.ID), zap.Error(err))
		}
	}
	return d, nil
}

func (s *Server) handleListDigests(w http.ResponseWriter, r *http.Request) {
	digests := s.archive.LoadCurrentMonth(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"digests": digests, "count": len(digests)})
}

func (s *Server) handleSearchDigests(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	var opts *search.Options
	if fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy")); fuzzy {
		opts = &search.Options{Fuzziness: 1}
	}

	hits, err := s.index.Search(r.Context(), q, limit, opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	res := search.Results{Query: q, Hits: hits, Total: len(hits)}
	if len(hits) == 0 {
		res.Suggestion, _ = s.index.Suggest(q)
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	d, ok := s.archive.Find(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "digest not found")
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleDigestPDF(w http.ResponseWriter, r *http.Request) {
	d, ok := s.archive.Find(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "digest not found")
		return
	}
	b, err := export.Render(d)
	if err != nil {
		s.logger.Error("pdf export failed", zap.String("id", d.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to generate the PDF")
		return
	}
	disposition := "inline"
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition+`; filename="`+export.Filename(d.CompanyName)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(r.URL.Query().Get("company"))
	if company == "" {
		s.respondError(w, http.StatusBadRequest, digest.ErrEmptyCompany.Error())
		return
	}
	facts := s.digests.GenerateFacts(r.Context(), company)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"company": company, "facts": facts})
}

// modelErrorStatus maps a failure from a model-backed operation to a status and a message for the user.
func modelErrorStatus(err error) (int, string) {
	var apiErr *gemini.APIError
	switch {
	case errors.Is(err, digest.ErrEmptyCompany), errors.Is(err, chat.ErrEmptyQuestion), errors.Is(err, chat.ErrNoData):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, digest.ErrMalformedResponse), errors.Is(err, digest.ErrNoJSONObject):
		return http.StatusUnprocessableEntity, "the model returned a response that could not be read, please try again"
	case errors.Is(err, chat.ErrBlocked):
		return http.StatusUnprocessableEntity, chat.ErrBlocked.Error()
	case errors.Is(err, chat.ErrEmptyResponse):
		return http.StatusUnprocessableEntity, chat.ErrEmptyResponse.Error()
	case errors.As(err, &apiErr) && apiErr.RetryClass() == retry.RateLimited:
		return http.StatusTooManyRequests, "the model API rate limit was exceeded, wait a moment and try again"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "the model did not respond in time"
	default:
		return http.StatusBadGateway, "the model API request failed"
	}
}

func (s *Server) respondModelError(w http.ResponseWriter, err error) {
	status, msg := modelErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("model request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("model request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
