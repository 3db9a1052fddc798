package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"wellstep/internal/export"
	"wellstep/internal/models"
	"wellstep/internal/repository"
	"wellstep/internal/services"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	// maxPage keeps (page-1)*limit well inside the OFFSET range
	maxPage = 1000000
	// maxGridPoints bounds the points query parameter of the resampled endpoint
	maxGridPoints = 100000
)

// WellHandler handles dataset and well API endpoints
type WellHandler struct {
	wellService     *services.WellService
	resampleService *services.ResampleService
	logger          *logging.StructuredLogger
	metrics         *metrics.Collector
}

// NewWellHandler creates a new well handler
func NewWellHandler(
	wellService *services.WellService,
	resampleService *services.ResampleService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WellHandler {
	return &WellHandler{
		wellService:     wellService,
		resampleService: resampleService,
		logger:          logger,
		metrics:         metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// WellsResponse lists the wells of a dataset
type WellsResponse struct {
	DatasetID string               `json:"dataset_id"`
	Wells     []models.WellSummary `json:"wells"`
}

// ListDatasets handles GET /api/datasets
func (h *WellHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datasets"
	ctx := r.Context()
	defer h.observe(endpoint, time.Now())

	page, limit := pagination(r)

	datasets, total, err := h.wellService.ListDatasets(ctx, limit, (page-1)*limit)
	if err != nil {
		h.handleError(w, r, endpoint, "failed to retrieve datasets", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, paginated(datasets, total, page, limit), http.StatusOK)
}

// GetDataset handles GET /api/datasets/{id}
func (h *WellHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datasets/{id}"
	ctx := r.Context()
	defer h.observe(endpoint, time.Now())

	dataset, err := h.wellService.GetDataset(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, r, endpoint, "failed to retrieve dataset", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, dataset, http.StatusOK)
}

// ListWells handles GET /api/datasets/{id}/wells
func (h *WellHandler) ListWells(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datasets/{id}/wells"
	ctx := r.Context()
	defer h.observe(endpoint, time.Now())

	datasetID := mux.Vars(r)["id"]
	wells, err := h.wellService.ListWells(ctx, datasetID)
	if err != nil {
		h.handleError(w, r, endpoint, "failed to retrieve wells", err)
		return
	}
	if wells == nil {
		wells = []models.WellSummary{}
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, WellsResponse{DatasetID: datasetID, Wells: wells}, http.StatusOK)
}

// GetObservations handles GET /api/datasets/{id}/wells/{well}/observations
func (h *WellHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datasets/{id}/wells/{well}/observations"
	ctx := r.Context()
	defer h.observe(endpoint, time.Now())

	vars := mux.Vars(r)
	well := vars["well"]
	page, limit := pagination(r)

	filter := repository.ObservationFilter{
		DatasetID: vars["id"],
		Well:      &well,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		startDate, err := parseTime(s)
		if err != nil {
			h.sendError(w, r, "invalid start_date format, expected YYYY-MM-DD or RFC3339", http.StatusBadRequest)
			return
		}
		filter.StartDate = &startDate
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		endDate, err := parseTime(s)
		if err != nil {
			h.sendError(w, r, "invalid end_date format, expected YYYY-MM-DD or RFC3339", http.StatusBadRequest)
			return
		}
		filter.EndDate = &endDate
	}

	observations, total, err := h.wellService.GetObservations(ctx, filter)
	if err != nil {
		h.handleError(w, r, endpoint, "failed to retrieve observations", err)
		return
	}
	if observations == nil {
		observations = []*models.Observation{}
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, paginated(observations, total, page, limit), http.StatusOK)
}

// GetResampled handles GET /api/datasets/{id}/wells/{well}/resampled
func (h *WellHandler) GetResampled(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datasets/{id}/wells/{well}/resampled"
	ctx := r.Context()
	defer h.observe(endpoint, time.Now())

	vars := mux.Vars(r)
	query := r.URL.Query()
	var req services.GridRequest

	if s := query.Get("start"); s != "" {
		start, err := parseTime(s)
		if err != nil {
			h.sendError(w, r, "invalid start format, expected YYYY-MM-DD or RFC3339", http.StatusBadRequest)
			return
		}
		req.Start = &start
	}
	if s := query.Get("step"); s != "" {
		step, err := time.ParseDuration(s)
		if err != nil || step <= 0 {
			h.sendError(w, r, "invalid step, expected a positive duration such as 6h", http.StatusBadRequest)
			return
		}
		req.Step = step
	}
	if s := query.Get("points"); s != "" {
		points, err := strconv.Atoi(s)
		if err != nil || points <= 0 || points > maxGridPoints {
			h.sendError(w, r, "invalid points, expected an integer between 1 and "+strconv.Itoa(maxGridPoints), http.StatusBadRequest)
			return
		}
		req.Points = points
	}

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		h.sendError(w, r, "invalid format, expected json or csv", http.StatusBadRequest)
		return
	}

	stored := false
	if s := query.Get("stored"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			h.sendError(w, r, "invalid stored, expected true or false", http.StatusBadRequest)
			return
		}
		stored = b
	}
	if stored && (req.Start != nil || req.Points != 0) {
		h.sendError(w, r, "start and points cannot be combined with stored, the stored grid is fixed", http.StatusBadRequest)
		return
	}

	var series *models.ResampledSeries
	var err error
	if stored {
		series, err = h.resampleService.StoredWell(ctx, vars["id"], vars["well"], req.Step)
	} else {
		series, err = h.resampleService.ResampleWell(ctx, vars["id"], vars["well"], req)
	}
	if err != nil {
		h.handleError(w, r, endpoint, "failed to resample well", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")

	if format == "csv" {
		timer := h.metrics.NewTimer(h.metrics.ExportDuration.WithLabelValues("csv"))
		defer timer.ObserveDuration()

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": vars["well"] + ".csv",
		}))
		w.WriteHeader(http.StatusOK)
		if err := export.WriteResampledCSV(w, []*models.ResampledSeries{series}); err != nil {
			h.logger.Error(ctx, "[API_EXPORT_ERROR] Failed to write CSV", logging.Fields{
				"dataset_id": vars["id"],
				"well":       vars["well"],
			}, err)
		}
		return
	}

	h.sendJSON(w, series, http.StatusOK)
}

// GetNexusRecords handles GET /api/datasets/{id}/nexus
func (h *WellHandler) GetNexusRecords(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datasets/{id}/nexus"
	ctx := r.Context()
	defer h.observe(endpoint, time.Now())

	query := r.URL.Query()
	page, limit := pagination(r)

	filter := repository.NexusFilter{
		DatasetID: mux.Vars(r)["id"],
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if s := query.Get("classname"); s != "" {
		filter.ClassName = &s
	}
	if s := query.Get("instancename"); s != "" {
		filter.InstanceName = &s
	}
	if s := query.Get("varname"); s != "" {
		filter.VarName = &s
	}

	records, total, err := h.wellService.GetNexusRecords(ctx, filter)
	if err != nil {
		h.handleError(w, r, endpoint, "failed to retrieve nexus records", err)
		return
	}
	if records == nil {
		records = []*models.NexusRecord{}
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, paginated(records, total, page, limit), http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WellHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.wellService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status["status"]})
	h.sendJSON(w, status, code)
}

// handleError maps service errors onto status codes
func (h *WellHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint, message string, err error) {
	var notFound *repository.NotFoundError
	var invalid *models.ValidationError

	switch {
	case errors.As(err, &notFound):
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &invalid):
		h.sendError(w, r, invalid.Error(), http.StatusBadRequest)
	case services.IsResampleError(err):
		h.metrics.RecordAPIError("resample_error", endpoint)
		h.sendError(w, r, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] "+message, logging.Fields{
			"endpoint": endpoint,
			"path":     r.URL.Path,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, message, http.StatusInternalServerError)
	}
}

func (h *WellHandler) observe(endpoint string, startTime time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
}

// sendJSON sends a JSON response
func (h *WellHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WellHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dataset API routes
func (h *WellHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/datasets", h.ListDatasets).Methods("GET")
	router.HandleFunc("/api/datasets/{id}", h.GetDataset).Methods("GET")
	router.HandleFunc("/api/datasets/{id}/wells", h.ListWells).Methods("GET")
	router.HandleFunc("/api/datasets/{id}/wells/{well}/observations", h.GetObservations).Methods("GET")
	router.HandleFunc("/api/datasets/{id}/wells/{well}/resampled", h.GetResampled).Methods("GET")
	router.HandleFunc("/api/datasets/{id}/nexus", h.GetNexusRecords).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}

func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, defaultLimit

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = min(p, maxPage)
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		limit = l
	}
	return page, limit
}

func paginated(data interface{}, total, page, limit int) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

// parseTime accepts a calendar date or a full RFC3339 timestamp
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
