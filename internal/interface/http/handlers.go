package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/natija-hub/results-engine/internal/calculator"
	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/search"
	"github.com/natija-hub/results-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth returns the liveness status of the server.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(s.Uptime().Seconds()),
		"data_version":   s.engine.Version(),
		"record_count":   s.engine.RecordCount(),
	})
}

// handleReady reports whether the engine has loaded its first snapshot.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "Initial data snapshot not loaded yet")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":       "ready",
		"data_version": s.engine.Version(),
	})
}

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// "GET /" is a catch-all in ServeMux; anything but the root itself is 404.
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "results-engine",
		"version": "1.0.0",
		"endpoints": []string{
			"POST /api/v1/search",
			"GET  /api/v1/search/suggestions",
			"GET  /api/v1/students/{id}",
			"GET  /api/v1/stages",
			"GET  /api/v1/analytics/overview",
			"GET  /api/v1/analytics/stage/{id}",
			"GET  /api/v1/analytics/region/{name}",
			"GET  /api/v1/schools/summary",
			"GET  /api/v1/schools/{name}/students",
			"GET  /api/v1/stats",
			"POST /api/v1/calculator",
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SEARCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// searchRequest is the POST /api/v1/search payload.
type searchRequest struct {
	Query          string   `json:"query"`
	StageID        string   `json:"stage_id,omitempty"`
	Region         string   `json:"region,omitempty"`
	Administration string   `json:"administration,omitempty"`
	School         string   `json:"school,omitempty"`
	Fields         []string `json:"fields,omitempty"`
	Limit          int      `json:"limit,omitempty"`
}

// handleSearch resolves one search query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	var req searchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var fields search.Fields
	for _, f := range req.Fields {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "name":
			fields.Name = true
		case "student_id", "seating_number":
			fields.StudentID = true
		default:
			writeJSONError(w, http.StatusBadRequest, "validation_error", "Unknown search field: "+f)
			return
		}
	}

	result, err := s.engine.Search(r.Context(), search.Query{
		Text: req.Query,
		Filter: record.Filter{
			StageID:        req.StageID,
			Region:         req.Region,
			Administration: req.Administration,
			School:         req.School,
		},
		Fields: fields,
		Limit:  req.Limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleSuggestions returns typeahead suggestions for a partial query.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	query := getQueryParam(r, "q", "")
	filter := record.Filter{
		StageID:        getQueryParam(r, "stage_id", ""),
		Region:         getQueryParam(r, "region", ""),
		Administration: getQueryParam(r, "administration", ""),
	}

	suggestions, err := s.engine.Suggest(r.Context(), query, filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}

// handleGetStudent returns every record scope for one seating number.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	records, err := s.engine.StudentByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"records": records,
	})
}

// handleGetStages returns the stage reference data.
func (s *Server) handleGetStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.engine.Stages(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"stages": stages,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleOverview returns the portal-wide aggregation.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	overview, err := s.engine.Overview(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, overview)
}

// handleStageAnalytics returns the aggregation for one stage.
func (s *Server) handleStageAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	result, err := s.engine.StageAnalytics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleRegionAnalytics returns the aggregation for one region, optionally
// scoped to a stage via the stage_id query parameter.
func (s *Server) handleRegionAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	result, err := s.engine.RegionAnalytics(r.Context(), r.PathValue("name"), getQueryParam(r, "stage_id", ""))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleSchoolsSummary returns the full school ranking, optionally narrowed
// by stage_id, region, or administration query parameters.
func (s *Server) handleSchoolsSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	filter := record.Filter{
		StageID:        getQueryParam(r, "stage_id", ""),
		Region:         getQueryParam(r, "region", ""),
		Administration: getQueryParam(r, "administration", ""),
	}

	summary, err := s.engine.Schools(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// handleSchoolStudents lists every student of one school, optionally narrowed
// to a stage.
func (s *Server) handleSchoolStudents(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	school := r.PathValue("name")
	students, err := s.engine.SchoolStudents(r.Context(), school, record.Filter{
		StageID: getQueryParam(r, "stage_id", ""),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"school_name":    school,
		"total_students": len(students),
		"students":       students,
		"data_version":   s.engine.Version(),
	})
}

// handleStats returns the statistics aggregate for an arbitrary filter scope.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}

	filter := record.Filter{
		StageID:        getQueryParam(r, "stage_id", ""),
		Region:         getQueryParam(r, "region", ""),
		Administration: getQueryParam(r, "administration", ""),
		School:         getQueryParam(r, "school", ""),
	}

	stats, err := s.engine.Statistics(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// calculatorRequest is the POST /api/v1/calculator payload.
type calculatorRequest struct {
	Subjects []calculator.Subject `json:"subjects"`
}

// handleCalculator runs the ad hoc grade calculator. It does not touch the
// record snapshot and works even before the first refresh.
func (s *Server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	var req calculatorRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.Calculate(r.Context(), req.Subjects)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATIVE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRefresh triggers a snapshot reload. The rebuild runs through the
// event bus, so on a Redis deployment every instance picks it up.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Refresh-Token")
	if token == "" || token != s.config.RefreshToken {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing refresh token")
		return
	}

	if err := s.engine.TriggerRefresh("http"); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"status": "refresh_triggered",
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HANDLER HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// requireReady rejects data requests until the first snapshot is loaded.
func (s *Server) requireReady(w http.ResponseWriter) bool {
	if !s.engine.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "Service is starting up, please retry shortly")
		return false
	}
	return true
}

// decodeBody decodes a size-limited JSON request body into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request_body", "Request body must be valid JSON: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps domain errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsExternalService(err):
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "A backing service is unavailable, please retry")
	case shared.IsInconsistentState(err):
		s.logger.Error("inconsistent aggregation state",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "inconsistent_state", "Aggregation state is inconsistent, a refresh is required")
	case r.Context().Err() != nil:
		writeJSONError(w, http.StatusRequestTimeout, "request_cancelled", "Request was cancelled")
	default:
		s.logger.Error("unhandled request error",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}
