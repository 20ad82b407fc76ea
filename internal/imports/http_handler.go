package imports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/auth"
	"github.com/mfolsen/brewstock/internal/domain"
)

const maxUploadBytes = 32 << 20

// Handler exposes the import service over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with its route set.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the import endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/imports/headers", h.handleExtractHeaders)
	r.Post("/imports/preview", h.handlePreview)
	r.Post("/imports/commit", h.handleCommit)
	r.Post("/mappings", h.handleSaveMapping)
}

func (h *Handler) handleExtractHeaders(w http.ResponseWriter, r *http.Request) {
	req, _, err := h.parseUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	headers, err := h.service.ExtractHeaders(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"headers": headers})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, form, err := h.parseUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mapping, err := parseMapping(form("mapping"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	limit := 0
	if raw := form("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	preview, err := h.service.Preview(r.Context(), PreviewRequest{
		Request: req,
		Mapping: mapping,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	req, form, err := h.parseUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mapping, err := parseMapping(form("mapping"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.Commit(r.Context(), CommitRequest{
		Request:        req,
		Mapping:        mapping,
		IdempotencyKey: strings.TrimSpace(form("idempotencyKey")),
	})
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "insufficient stock") {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSaveMapping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID   string              `json:"userId"`
		Target   domain.ImportTarget `json:"target"`
		Mappings []struct {
			LogicalField string `json:"logicalField"`
			RawHeader    string `json:"rawHeader"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid user id: %w", err))
		return
	}

	mapping := domain.FieldMapping{}
	for _, entry := range payload.Mappings {
		mapping[entry.LogicalField] = entry.RawHeader
	}

	if err := h.service.SaveMapping(r.Context(), userID, payload.Target, mapping); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"saved": len(mapping)})
}

// parseUpload reads the multipart form shared by the file endpoints and
// returns the base request plus an accessor for the remaining form values.
func (h *Handler) parseUpload(r *http.Request) (Request, func(string) string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return Request{}, nil, fmt.Errorf("invalid form data: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return Request{}, nil, fmt.Errorf("file required: %w", err)
	}

	userID, err := uuid.Parse(strings.TrimSpace(r.FormValue("userId")))
	if err != nil {
		return Request{}, nil, fmt.Errorf("invalid user id: %w", err)
	}
	if err := auth.EnforceUserScope(r.Context(), userID); err != nil {
		return Request{}, nil, err
	}

	target := domain.ImportTarget(strings.TrimSpace(r.FormValue("target")))
	if target == "" {
		target = domain.ImportTargetSales
	}
	if !target.Valid() {
		return Request{}, nil, fmt.Errorf("unknown import target %q", target)
	}

	return Request{
		UserID:   userID,
		Target:   target,
		FileName: header.Filename,
		Data:     file,
	}, r.FormValue, nil
}

func parseMapping(raw string) (domain.FieldMapping, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("mapping is required")
	}
	var mapping domain.FieldMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("invalid mapping payload: %w", err)
	}
	return mapping, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"message": err.Error()})
}
