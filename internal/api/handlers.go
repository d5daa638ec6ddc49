package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/query"
	"github.com/sells-group/contract-review/internal/review"
	"github.com/sells-group/contract-review/internal/store"
)

const (
	maxReviewBody   = 1 << 20
	defaultReviewer = "web"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":       false,
			"database": h.opts.Driver,
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "database": h.opts.Driver})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter := store.DocumentFilter{Status: model.DocumentStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(r, "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	docs, err := h.query.Documents(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.query.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.query.Versions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// getAttributes returns the attribute view. includeVersion=0 returns the
// bare attribute list.
func (h *Handler) getAttributes(w http.ResponseWriter, r *http.Request) {
	sel, err := query.ParseVersion(r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.query.Attributes(r.Context(), chi.URLParam(r, "id"), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch strings.ToLower(r.URL.Query().Get("includeVersion")) {
	case "0", "false":
		writeJSON(w, http.StatusOK, view.Attributes)
	default:
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) exportAttributes(w http.ResponseWriter, r *http.Request) {
	sel, err := query.ParseVersion(r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := query.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	var buf bytes.Buffer
	if err := h.query.Export(r.Context(), id, sel, format, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.%s", id, sel, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	view, err := h.query.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listPostbacks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	logs, err := h.backend.ListPostbackLogs(r.Context(), store.PostbackFilter{
		DocumentID: chi.URLParam(r, "id"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []model.PostbackLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// reviewRequest accepts either a corrections map or the attribute-list
// form. versionNumber is accepted for compatibility and ignored.
type reviewRequest struct {
	Corrections   map[string]string `json:"corrections"`
	Attributes    []attributeUpdate `json:"attributes"`
	ReviewerName  string            `json:"reviewerName"`
	ReviewedBy    string            `json:"reviewedBy"`
	Status        string            `json:"status"`
	VersionNumber *int              `json:"versionNumber"`
}

type attributeUpdate struct {
	AttributeKey   string  `json:"attributeKey"`
	ID             string  `json:"id"`
	RowID          string  `json:"rowId"`
	CorrectedValue *string `json:"correctedValue"`
}

func (req reviewRequest) corrections() map[string]string {
	out := make(map[string]string, len(req.Corrections)+len(req.Attributes))
	for k, v := range req.Corrections {
		out[k] = v
	}
	for _, a := range req.Attributes {
		key := a.AttributeKey
		if key == "" {
			key = a.ID
		}
		if key == "" {
			continue
		}
		var v string
		if a.CorrectedValue != nil {
			v = *a.CorrectedValue
		}
		out[key] = v
	}
	return out
}

func (req reviewRequest) reviewer() string {
	for _, s := range []string{req.ReviewerName, req.ReviewedBy} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return defaultReviewer
}

type reviewResponse struct {
	OK              bool     `json:"ok"`
	DocumentID      string   `json:"documentId"`
	VersionNumber   int      `json:"versionNumber"`
	VersionID       string   `json:"versionId"`
	ReviewSessionID string   `json:"reviewSessionId"`
	UpdatedCount    int      `json:"updatedCount"`
	UpdatedKeys     []string `json:"updatedKeys"`
}

func (h *Handler) submitReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reviewRequest
	body := http.MaxBytesReader(w, r.Body, maxReviewBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, apperr.Invalid("body", "exceeds 1MB"))
			return
		}
		writeError(w, r, apperr.Invalid("body", "malformed JSON"))
		return
	}

	out, err := h.reviewer.Submit(r.Context(), review.Submission{
		DocumentID:  id,
		Corrections: req.corrections(),
		Reviewer:    req.reviewer(),
		Status:      model.DocumentStatus(req.Status),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{
		OK:              true,
		DocumentID:      id,
		VersionNumber:   out.VersionNumber,
		VersionID:       out.VersionID,
		ReviewSessionID: out.SessionID,
		UpdatedCount:    len(out.UpdatedKeys),
		UpdatedKeys:     out.UpdatedKeys,
	})
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}
