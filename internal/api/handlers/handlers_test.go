package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/card-analytics/internal/analytics"
	"github.com/dvloznov/card-analytics/internal/api/middleware"
	"github.com/dvloznov/card-analytics/internal/dataset"
	"github.com/rs/zerolog"
)

var loadTime = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func testEngine() *analytics.Engine {
	rows := []dataset.Row{
		{CustomerID: "1", Name: "Asha", Birthdate: "15-06-1990", Gender: "F", Date: "01-01-2024", Amount: "100", Merchant: "Acme Corp", Category: "Grocery", City: "Mumbai"},
		{CustomerID: "1", Name: "Asha", Birthdate: "15-06-1990", Gender: "F", Date: "16-01-2024", Amount: "100", Merchant: "Acme Corp", Category: "Grocery", City: "Mumbai"},
		{CustomerID: "1", Name: "Asha", Birthdate: "15-06-1990", Gender: "F", Date: "31-01-2024", Amount: "100", Merchant: "Acme Corp", Category: "Grocery", City: "Mumbai"},
		{CustomerID: "2", Name: "Ravi", Birthdate: "10-03-1960", Gender: "M", Date: "05-02-2024", Amount: "400", Merchant: "Zen Fuel", Category: "Fuel", City: "Delhi"},
		{CustomerID: "2", Name: "Ravi", Birthdate: "10-03-1960", Gender: "M", Date: "06-02-2024", Amount: "600", Merchant: "Zen Fuel", Category: "Fuel", City: "Delhi"},
	}
	return analytics.New(dataset.NewTable("test.csv", rows, loadTime))
}

func newTestServer(service AnalyticsService) http.Handler {
	h := NewAnalyticsHandler(service, zerolog.New(io.Discard))
	h.now = func() time.Time { return loadTime }
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not a JSON object: %v (%q)", err, rr.Body.String())
	}
	return rr, decoded
}

func TestAnalyticsHandler_Endpoints(t *testing.T) {
	server := newTestServer(testEngine())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantField  string
		wantValue  interface{}
	}{
		{"merchant trust", http.MethodPost, PathMerchantTrust, `{"merchant_name":"acme"}`, 200, "trust_score", float64(72)},
		{"merchant rating", http.MethodPost, PathMerchantTrust, `{"merchant_name":"acme"}`, 200, "rating", "Good"},
		{"merchant missing", http.MethodPost, PathMerchantTrust, `{}`, 400, "error", "Merchant name is required"},
		{"merchant unknown", http.MethodPost, PathMerchantTrust, `{"merchant_name":"nobody"}`, 404, "error", "Merchant not found"},

		{"customer numeric id", http.MethodPost, PathCustomerAnalysis, `{"customer_id":2}`, 200, "spending_level", "High"},
		{"customer string id", http.MethodPost, PathCustomerAnalysis, `{"customer_id":"1"}`, 200, "favorite_category", "Grocery"},
		{"customer missing", http.MethodPost, PathCustomerAnalysis, `{}`, 400, "error", "Customer ID is required"},
		{"customer null", http.MethodPost, PathCustomerAnalysis, `{"customer_id":null}`, 400, "error", "Customer ID is required"},
		{"customer unparseable", http.MethodPost, PathCustomerAnalysis, `{"customer_id":"abc"}`, 404, "error", "Customer not found"},
		{"customer unknown", http.MethodPost, PathCustomerAnalysis, `{"customer_id":42}`, 404, "error", "Customer not found"},

		{"category", http.MethodPost, PathCategoryInsights, `{"category":"Fuel"}`, 200, "trend", "increasing"},
		{"category missing", http.MethodPost, PathCategoryInsights, `{"category":""}`, 400, "error", "Category is required"},
		{"category unknown", http.MethodPost, PathCategoryInsights, `{"category":"Toys"}`, 404, "error", "Category not found"},

		{"risk", http.MethodPost, PathRiskAssessment, `{"amount":800,"category":"Fuel"}`, 200, "risk_level", "High Risk"},
		{"risk amount missing", http.MethodPost, PathRiskAssessment, `{"category":"Fuel"}`, 400, "error", "Amount is required"},
		{"risk amount zero", http.MethodPost, PathRiskAssessment, `{"amount":0,"category":"Fuel"}`, 400, "error", "Amount must be positive"},
		{"risk amount negative", http.MethodPost, PathRiskAssessment, `{"amount":-3,"category":"Fuel"}`, 400, "error", "Amount must be positive"},
		{"risk amount wrong type", http.MethodPost, PathRiskAssessment, `{"amount":"big","category":"Fuel"}`, 400, "error", "Invalid request body"},
		{"risk category missing", http.MethodPost, PathRiskAssessment, `{"amount":10}`, 400, "error", "Category is required"},
		{"risk category unknown", http.MethodPost, PathRiskAssessment, `{"amount":10,"category":"Toys"}`, 404, "error", "Unable to assess risk"},

		{"city", http.MethodPost, PathCityAnalysis, `{"city_name":"mum"}`, 200, "city", "Mumbai"},
		{"city missing", http.MethodPost, PathCityAnalysis, `{"city_name":"  "}`, 400, "error", "City name is required"},
		{"city unknown", http.MethodPost, PathCityAnalysis, `{"city_name":"Oslo"}`, 404, "error", "City not found"},

		{"prediction default gender", http.MethodPost, PathSpendingPrediction, `{"age":64}`, 200, "gender", "Male"},
		{"prediction fallback", http.MethodPost, PathSpendingPrediction, `{"age":130,"gender":"X"}`, 200, "gender", "All"},
		{"prediction age missing", http.MethodPost, PathSpendingPrediction, `{"gender":"F"}`, 400, "error", "Age is required"},
		{"prediction age zero", http.MethodPost, PathSpendingPrediction, `{"age":0}`, 400, "error", "Age must be positive"},

		{"dashboard", http.MethodGet, PathDashboardStats, "", 200, "total_transactions", float64(5)},
		{"health", http.MethodGet, PathHealth, "", 200, "data_loaded", true},
		{"health alias", http.MethodGet, PathHealthAlias, "", 200, "status", "healthy"},

		{"malformed body", http.MethodPost, PathMerchantTrust, `{"merchant_name":`, 400, "error", "Invalid request body"},
		{"empty body", http.MethodPost, PathCityAnalysis, "", 400, "error", "City name is required"},
		{"wrong method", http.MethodGet, PathMerchantTrust, "", 405, "error", "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := do(t, server, tt.method, tt.path, tt.body)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%v)", tt.wantStatus, rr.Code, body)
			}
			if got := body[tt.wantField]; got != tt.wantValue {
				t.Errorf("%s = %v, want %v", tt.wantField, got, tt.wantValue)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestAnalyticsHandler_NoData(t *testing.T) {
	server := newTestServer(analytics.New(nil))

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, PathMerchantTrust, `{"merchant_name":"acme"}`},
		{http.MethodPost, PathCustomerAnalysis, `{"customer_id":1}`},
		{http.MethodPost, PathCategoryInsights, `{"category":"Fuel"}`},
		{http.MethodPost, PathRiskAssessment, `{"amount":10,"category":"Fuel"}`},
		{http.MethodPost, PathCityAnalysis, `{"city_name":"Delhi"}`},
		{http.MethodPost, PathSpendingPrediction, `{"age":30}`},
		{http.MethodGet, PathDashboardStats, ""},
	}

	for _, req := range requests {
		t.Run(req.path, func(t *testing.T) {
			rr, body := do(t, server, req.method, req.path, req.body)
			if rr.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %d", rr.Code)
			}
			if body["error"] != "Dataset not loaded" {
				t.Errorf("unexpected error: %v", body["error"])
			}
		})
	}

	rr, body := do(t, server, http.MethodGet, PathHealth, "")
	if rr.Code != http.StatusOK || body["data_loaded"] != false || body["status"] != "healthy" {
		t.Errorf("health without data = %d %v", rr.Code, body)
	}
}

func TestAnalyticsHandler_Health(t *testing.T) {
	rr, body := do(t, newTestServer(testEngine()), http.MethodGet, PathHealth, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["records"] != float64(5) || body["source"] != "test.csv" {
		t.Errorf("unexpected health body: %v", body)
	}
	if body["time"] != "2025-06-15T12:00:00Z" {
		t.Errorf("time = %v", body["time"])
	}
}

type failingService struct {
	AnalyticsService
}

func (failingService) DashboardStats() (*analytics.DashboardStats, error) {
	return nil, errors.New("disk on fire")
}

func (failingService) MerchantTrust(string) (*analytics.MerchantTrust, error) {
	return nil, errors.New("disk on fire")
}

func TestAnalyticsHandler_UnexpectedError(t *testing.T) {
	var logs bytes.Buffer
	h := NewAnalyticsHandler(failingService{}, zerolog.New(&logs))
	mux := http.NewServeMux()
	h.Register(mux)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, PathDashboardStats, ""},
		{http.MethodPost, PathMerchantTrust, `{"merchant_name":"x"}`},
	} {
		rr, body := do(t, mux, tc.method, tc.path, tc.body)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", tc.path, rr.Code)
		}
		if body["error"] != "Internal server error" {
			t.Errorf("%s: internal details leaked: %v", tc.path, body["error"])
		}
	}

	if !strings.Contains(logs.String(), "disk on fire") {
		t.Error("expected the underlying error to be logged")
	}
}

func TestParseCustomerID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		present bool
		ok      bool
	}{
		{`1001`, 1001, true, true},
		{`"1001"`, 1001, true, true},
		{`" 7 "`, 7, true, true},
		{`1001.0`, 1001, true, true},
		{`1001.5`, 0, true, false},
		{`"abc"`, 0, true, false},
		{`true`, 0, true, false},
		{`""`, 0, false, false},
		{`null`, 0, false, false},
		{``, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, present, ok := parseCustomerID(json.RawMessage(tt.raw))
			if got != tt.want || present != tt.present || ok != tt.ok {
				t.Errorf("parseCustomerID(%s) = (%d, %v, %v), want (%d, %v, %v)", tt.raw, got, present, ok, tt.want, tt.present, tt.ok)
			}
		})
	}
}

func TestAnalyticsHandler_ErrorLogUsesRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	h := NewAnalyticsHandler(failingService{}, zerolog.New(io.Discard))
	mux := http.NewServeMux()
	h.Register(mux)
	server := middleware.Chain(mux, middleware.RequestID, middleware.Logger(zerolog.New(&logs)))

	req := httptest.NewRequest(http.MethodGet, PathDashboardStats, nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if strings.Contains(line, "disk on fire") {
			found = true
			if !strings.Contains(line, `"request_id":"req-42"`) {
				t.Errorf("error line lacks request id: %s", line)
			}
		}
	}
	if !found {
		t.Errorf("expected the underlying error in the request log, got %s", logs.String())
	}
}
