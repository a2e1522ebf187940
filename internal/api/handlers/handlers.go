package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/api/middleware"
	"github.com/dvloznov/card-analytics/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Route paths served by AnalyticsHandler.
const (
	PathMerchantTrust      = "/api/merchant-trust"
	PathCustomerAnalysis   = "/api/customer-analysis"
	PathCategoryInsights   = "/api/category-insights"
	PathRiskAssessment     = "/api/risk-assessment"
	PathCityAnalysis       = "/api/city-analysis"
	PathSpendingPrediction = "/api/spending-prediction"
	PathDashboardStats     = "/api/dashboard-stats"
	PathHealth             = "/api/health"
	PathHealthAlias        = "/health"
)

// Routes lists every path registered by Register.
func Routes() []string {
	return []string{
		PathMerchantTrust, PathCustomerAnalysis, PathCategoryInsights, PathRiskAssessment,
		PathCityAnalysis, PathSpendingPrediction, PathDashboardStats, PathHealth, PathHealthAlias,
	}
}

// queryOutcomes counts analytics queries by outcome: ok, invalid, not_found, no_data, error.
var queryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "card_analytics_queries_total",
	Help: "Analytics queries by query name and outcome",
}, []string{"query", "outcome"})

// AnalyticsService is the query surface the handlers need.
type AnalyticsService interface {
	MerchantTrust(name string) (*analytics.MerchantTrust, error)
	CustomerAnalysis(customerID int64) (*analytics.CustomerProfile, error)
	CategoryInsights(category string) (*analytics.CategoryInsights, error)
	AssessRisk(amount float64, category string) (*analytics.RiskAssessment, error)
	CityAnalysis(name string) (*analytics.CityActivity, error)
	PredictSpending(age int, gender string) (*analytics.SpendingPrediction, error)
	DashboardStats() (*analytics.DashboardStats, error)
	Status() analytics.Status
}

var _ AnalyticsService = (*analytics.Engine)(nil)

// AnalyticsHandler serves the dashboard's analytics endpoints.
type AnalyticsHandler struct {
	service AnalyticsService
	log     zerolog.Logger
	now     func() time.Time
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(service AnalyticsService, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		log:     log,
		now:     time.Now,
	}
}

// Register mounts every analytics route on mux.
func (h *AnalyticsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc(PathMerchantTrust, only(http.MethodPost, h.MerchantTrust))
	mux.HandleFunc(PathCustomerAnalysis, only(http.MethodPost, h.CustomerAnalysis))
	mux.HandleFunc(PathCategoryInsights, only(http.MethodPost, h.CategoryInsights))
	mux.HandleFunc(PathRiskAssessment, only(http.MethodPost, h.RiskAssessment))
	mux.HandleFunc(PathCityAnalysis, only(http.MethodPost, h.CityAnalysis))
	mux.HandleFunc(PathSpendingPrediction, only(http.MethodPost, h.SpendingPrediction))
	mux.HandleFunc(PathDashboardStats, only(http.MethodGet, h.DashboardStats))
	mux.HandleFunc(PathHealth, only(http.MethodGet, h.Health))
	mux.HandleFunc(PathHealthAlias, only(http.MethodGet, h.Health))
}

func only(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		fn(w, r)
	}
}

// MerchantTrust handles POST /api/merchant-trust
func (h *AnalyticsHandler) MerchantTrust(w http.ResponseWriter, r *http.Request) {
	const query = "merchant_trust"

	var req struct {
		MerchantName string `json:"merchant_name"`
	}
	if !h.decode(w, r, query, &req) {
		return
	}
	name := strings.TrimSpace(req.MerchantName)
	if name == "" {
		h.invalid(w, query, "Merchant name is required")
		return
	}

	result, err := h.service.MerchantTrust(name)
	h.respond(w, r, query, result, err, "Merchant not found")
}

// CustomerAnalysis handles POST /api/customer-analysis
func (h *AnalyticsHandler) CustomerAnalysis(w http.ResponseWriter, r *http.Request) {
	const query = "customer_analysis"

	var req struct {
		CustomerID json.RawMessage `json:"customer_id"`
	}
	if !h.decode(w, r, query, &req) {
		return
	}

	id, present, ok := parseCustomerID(req.CustomerID)
	if !present {
		h.invalid(w, query, "Customer ID is required")
		return
	}
	if !ok {
		h.outcome(query, "not_found")
		middleware.WriteError(w, http.StatusNotFound, "Customer not found")
		return
	}

	result, err := h.service.CustomerAnalysis(id)
	h.respond(w, r, query, result, err, "Customer not found")
}

// CategoryInsights handles POST /api/category-insights
func (h *AnalyticsHandler) CategoryInsights(w http.ResponseWriter, r *http.Request) {
	const query = "category_insights"

	var req struct {
		Category string `json:"category"`
	}
	if !h.decode(w, r, query, &req) {
		return
	}
	if req.Category == "" {
		h.invalid(w, query, "Category is required")
		return
	}

	result, err := h.service.CategoryInsights(req.Category)
	h.respond(w, r, query, result, err, "Category not found")
}

// RiskAssessment handles POST /api/risk-assessment
func (h *AnalyticsHandler) RiskAssessment(w http.ResponseWriter, r *http.Request) {
	const query = "risk_assessment"

	var req struct {
		Amount   *float64 `json:"amount"`
		Category string   `json:"category"`
	}
	if !h.decode(w, r, query, &req) {
		return
	}

	switch {
	case req.Amount == nil:
		h.invalid(w, query, "Amount is required")
		return
	case req.Category == "":
		h.invalid(w, query, "Category is required")
		return
	case *req.Amount <= 0 || math.IsInf(*req.Amount, 0):
		h.invalid(w, query, "Amount must be positive")
		return
	}

	result, err := h.service.AssessRisk(*req.Amount, req.Category)
	h.respond(w, r, query, result, err, "Unable to assess risk")
}

// CityAnalysis handles POST /api/city-analysis
func (h *AnalyticsHandler) CityAnalysis(w http.ResponseWriter, r *http.Request) {
	const query = "city_analysis"

	var req struct {
		CityName string `json:"city_name"`
	}
	if !h.decode(w, r, query, &req) {
		return
	}
	name := strings.TrimSpace(req.CityName)
	if name == "" {
		h.invalid(w, query, "City name is required")
		return
	}

	result, err := h.service.CityAnalysis(name)
	h.respond(w, r, query, result, err, "City not found")
}

// SpendingPrediction handles POST /api/spending-prediction
func (h *AnalyticsHandler) SpendingPrediction(w http.ResponseWriter, r *http.Request) {
	const query = "spending_prediction"

	var req struct {
		Age    *int   `json:"age"`
		Gender string `json:"gender"`
	}
	if !h.decode(w, r, query, &req) {
		return
	}
	if req.Age == nil {
		h.invalid(w, query, "Age is required")
		return
	}
	if *req.Age <= 0 {
		h.invalid(w, query, "Age must be positive")
		return
	}
	gender := req.Gender
	if gender == "" {
		gender = "M"
	}

	result, err := h.service.PredictSpending(*req.Age, gender)
	h.respond(w, r, query, result, err, "Unable to predict")
}

// DashboardStats handles GET /api/dashboard-stats
func (h *AnalyticsHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.DashboardStats()
	h.respond(w, r, "dashboard_stats", result, err, "Unable to fetch statistics")
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	State   string `json:"status"`
	Message string `json:"message"`
	Time    string `json:"time"`
	analytics.Status
}

// Health handles GET /api/health and GET /health. The service is healthy even
// without data; data_loaded tells the dashboard whether queries can succeed.
func (h *AnalyticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, HealthResponse{
		State:   "healthy",
		Message: "Card analytics API is running",
		Time:    h.now().UTC().Format(time.RFC3339),
		Status:  h.service.Status(),
	})
}

// decode reads the JSON body into dst, answering 400 itself on failure.
func (h *AnalyticsHandler) decode(w http.ResponseWriter, r *http.Request, query string, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.invalid(w, query, "Invalid request body")
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// An empty body behaves like an empty object so the field checks report what is missing.
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.invalid(w, query, "Invalid request body")
		return false
	}
	return true
}

func (h *AnalyticsHandler) invalid(w http.ResponseWriter, query, message string) {
	h.outcome(query, "invalid")
	middleware.WriteError(w, http.StatusBadRequest, message)
}

// respond maps an engine result to an HTTP response.
func (h *AnalyticsHandler) respond(w http.ResponseWriter, r *http.Request, query string, result interface{}, err error, notFound string) {
	switch {
	case err == nil:
		h.outcome(query, "ok")
		middleware.WriteJSON(w, http.StatusOK, result)
	case errors.Is(err, analytics.ErrNoData):
		h.outcome(query, "no_data")
		middleware.WriteError(w, http.StatusNotFound, "Dataset not loaded")
	case errors.Is(err, analytics.ErrNotFound):
		h.outcome(query, "not_found")
		middleware.WriteError(w, http.StatusNotFound, notFound)
	default:
		h.outcome(query, "error")
		// The request logger from middleware.Logger already carries request_id.
		log := logger.FromContextOr(r.Context(), h.log)
		log.Error().
			Err(err).
			Str("query", query).
			Msg("Analytics query failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *AnalyticsHandler) outcome(query, outcome string) {
	queryOutcomes.WithLabelValues(query, outcome).Inc()
}

// parseCustomerID accepts a JSON number or a numeric string. present is false
// for a missing, null or empty value; ok is false when the value is not an
// integral id.
func parseCustomerID(raw json.RawMessage) (id int64, present, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, false
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, true, false
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, false, false
		}
	} else {
		text = string(raw)
	}

	id, ok = analytics.ParseCustomerID(text)
	return id, true, ok
}
