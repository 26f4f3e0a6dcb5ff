package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"cetcompare/internal/api"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// StatsSource reports what the cutoff store has loaded.
type StatsSource interface {
	DataStats() (*api.DataStats, error)
}

// APIHandler handles the comparison JSON API. Service is nil when the
// cutoff store could not be loaded.
type APIHandler struct {
	Service *ComparisonService
	Stats   StatsSource
	Chat    *ChatHandler
}

// Health reports whether the API is up and which services it offers.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.Health{
		Status:              "healthy",
		Message:             "CET Compare API is running",
		ComparisonAvailable: h.Service != nil,
		ChatAvailable:       h.Chat != nil && h.Chat.Available,
	})
}

// CompareHealth reports the state of the loaded cutoff data.
func (h *APIHandler) CompareHealth(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Stats == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "unhealthy",
			"error":             "Cutoff data not loaded",
			"service_available": false,
		})
		return
	}

	stats, err := h.Stats.DataStats()
	if err != nil {
		logRequestError(r, "Compare health check failed", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":            "unhealthy",
			"error":             err.Error(),
			"service_available": true,
		})
		return
	}
	if stats.TotalRecords == 0 {
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":            "unhealthy",
			"error":             "No data loaded",
			"service_available": true,
		})
		return
	}

	respondJSON(w, http.StatusOK, api.CompareHealth{
		Status:           "healthy",
		ServiceAvailable: true,
		DataStats:        stats,
	})
}

// SearchColleges handles GET /api/compare/colleges?query=
func (h *APIHandler) SearchColleges(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	colleges, err := h.Service.Search(query)
	if err != nil {
		logRequestError(r, "College search failed", err)
		respondJSON(w, http.StatusInternalServerError, api.ErrorBody{
			Error:   "Failed to search colleges",
			Message: err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, api.CollegesResponse{
		Success:  true,
		Colleges: colleges,
		Count:    len(colleges),
	})
}

// Branches handles POST /api/compare/branches
func (h *APIHandler) Branches(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	field := gjson.GetBytes(body, "college_codes")
	if !field.Exists() {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{
			Error:   "Invalid request",
			Message: "college_codes field is required in request body",
		})
		return
	}
	if !field.IsArray() {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{
			Error:   "Invalid college_codes",
			Message: "college_codes must be a non-empty list",
		})
		return
	}

	branches, err := h.Service.Branches(codesFrom(field))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, api.ErrorBody{Error: verr.Title, Message: verr.Detail})
			return
		}
		logRequestError(r, "Branch lookup failed", err)
		respondJSON(w, http.StatusInternalServerError, api.ErrorBody{
			Error:   "Failed to fetch branches",
			Message: err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, api.BranchesResponse{
		Success:  true,
		Branches: branches,
		Count:    len(branches),
	})
}

// Compare handles POST /api/compare/compare
func (h *APIHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	in, err := parseCompareInput(body)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	req, err := in.validate()
	if err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.Service.Compare(req)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			respondJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		logRequestError(r, "Comparison failed", err)
		respondJSON(w, http.StatusInternalServerError, api.ErrorBody{
			Error:   "Comparison failed",
			Message: err.Error(),
		})
		return
	}

	if logger != nil {
		logger.Info("Comparison served",
			zap.Strings("colleges", req.CollegeCodes),
			zap.String("branch", req.BranchCode),
			zap.String("category", string(req.Category)),
			zap.Int("series", len(result.Colleges)))
	}
	respondJSON(w, http.StatusOK, api.CompareResponse{Success: true, Data: result})
}

// Endpoints lists the comparison routes.
func (h *APIHandler) Endpoints(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"message":           "College comparison API is operational",
		"service_available": h.Service != nil,
		"endpoints": map[string]string{
			"search_colleges":  "GET /api/compare/colleges?query=<search_term>",
			"get_branches":     "POST /api/compare/branches",
			"compare_colleges": "POST /api/compare/compare",
			"health_check":     "GET /api/compare/health",
			"test":             "GET /api/compare/test",
		},
	})
}

func (h *APIHandler) available(w http.ResponseWriter) bool {
	if h.Service != nil {
		return true
	}
	respondJSON(w, http.StatusServiceUnavailable, api.ErrorBody{
		Error:   "Service unavailable",
		Message: "College comparison service is not loaded",
	})
	return false
}

// parseCompareInput reads the compare body leniently: codes may be
// strings or numbers, and unknown fields are ignored.
func parseCompareInput(body []byte) (compareInput, error) {
	var in compareInput

	codes := gjson.GetBytes(body, "college_codes")
	if codes.Exists() {
		if !codes.IsArray() {
			return in, &ValidationError{Title: "Invalid college_codes", Detail: "college_codes must be a list"}
		}
		list := codesFrom(codes)
		in.CollegeCodes = &list
	}

	branch := gjson.GetBytes(body, "branch_code")
	if branch.Exists() {
		if branch.Type != gjson.String {
			return in, &ValidationError{Title: "Invalid branch_code", Detail: "branch_code must be a non-empty string"}
		}
		s := branch.String()
		in.BranchCode = &s
	}

	in.Category = gjson.GetBytes(body, "category").String()
	in.Metric = gjson.GetBytes(body, "metric").String()
	return in, nil
}

func codesFrom(field gjson.Result) []string {
	var codes []string
	for _, item := range field.Array() {
		switch item.Type {
		case gjson.String, gjson.Number:
			codes = append(codes, item.String())
		}
	}
	return codes
}

// readJSONBody reads a non-empty JSON object body or writes a 400.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid request", Message: "Failed to read request body"})
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid request", Message: "Request body is required"})
		return nil, false
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid request", Message: "Request body must be a JSON object"})
		return nil, false
	}
	return body, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{Error: verr.Title, Message: verr.Detail})
		return
	}
	respondJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid request", Message: err.Error()})
}

func logRequestError(r *http.Request, msg string, err error) {
	if logger == nil {
		return
	}
	logger.Error(msg, zap.Error(err), zap.String("path", r.URL.Path), zap.String("request_id", requestID(r.Context())))
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("JSON encoding error", zap.Error(err))
	}
}
