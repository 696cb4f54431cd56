package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/metrics"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type LinkHandler struct {
	service ports.LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(service ports.LinkService, baseURL string, log *zap.Logger) *LinkHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkHandler{service: service, baseURL: baseURL, logger: log}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	URL string `json:"url"`
}

// ListResponse is one page of links
type ListResponse struct {
	Data  []domain.Link `json:"data"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// HomeResponse summarises the signed-in user's view
type HomeResponse struct {
	User  *domain.Principal `json:"user"`
	Links []domain.Link     `json:"links"`
	Total int64             `json:"total"`
}

// Redirect sends the visitor to the destination of the requested code.
// A click is committed before the redirect is written; if it cannot be
// recorded the visitor gets a 500 instead. HEAD requests are answered
// without counting a visit.
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	link, err := h.service.Resolve(r.Context(), code)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.Redirects.WithLabelValues(metrics.OutcomeMiss).Inc()
		h.logger.Debug("short code miss", zap.String("code", code))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err != nil {
		metrics.Redirects.WithLabelValues(metrics.OutcomeFailure).Inc()
		h.logger.Error("resolve failed", zap.String("code", code), zap.Error(err))
		writeErrorStatus(w, http.StatusInternalServerError, domain.ErrPersistence.Error())
		return
	}

	if r.Method != http.MethodGet {
		http.Redirect(w, r, link.URL, http.StatusFound)
		return
	}

	meta := domain.VisitMeta{
		Referer:   r.Referer(),
		UserAgent: r.UserAgent(),
	}
	if _, err := h.service.RecordClick(r.Context(), link, meta); err != nil {
		metrics.Redirects.WithLabelValues(metrics.OutcomeFailure).Inc()
		h.logger.Error("record click failed", zap.String("code", code), zap.Int64("link_id", link.ID), zap.Error(err))
		writeErrorStatus(w, http.StatusInternalServerError, "failed to record visit")
		return
	}

	metrics.Redirects.WithLabelValues(metrics.OutcomeHit).Inc()
	h.logger.Debug("short code hit", zap.String("code", code), zap.String("url", link.URL))
	http.Redirect(w, r, link.URL, http.StatusFound)
}

// Create accepts {"url": ...} as JSON or a form field.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Code:    http.StatusBadRequest,
				Message: "invalid request body",
				Details: err.Error(),
			})
			return
		}
	} else {
		req.URL = r.FormValue("url")
	}

	baseURL := r.Header.Get("Origin")
	if baseURL == "" {
		baseURL = h.baseURL
	}

	link, err := h.service.CreateOrFetch(r.Context(), strings.TrimSpace(req.URL), baseURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, link)
}

// List Links
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	links, count, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Data:  links,
		Total: count,
		Page:  page,
		Limit: limit,
	})
}

// Get returns one link without counting a visit
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *LinkHandler) Home(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())

	links, total, err := h.service.List(r.Context(), 1, defaultPageLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, HomeResponse{User: principal, Links: links, Total: total})
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
