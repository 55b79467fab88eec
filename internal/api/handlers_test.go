package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"csetrack/pkg/csetrack"
)

// setupTestRouter creates a test router with a temporary database.
func setupTestRouter(t *testing.T) (http.Handler, *csetrack.Core, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	core, err := csetrack.Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	router := NewRouter(core, nil)

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}

	return router, core, cleanup
}

// doRequest performs a request and returns the response.
func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// parseJSON parses the response body into a map.
func parseJSON(rr *httptest.ResponseRecorder) map[string]any {
	var result map[string]any
	json.NewDecoder(rr.Body).Decode(&result)
	return result
}

func TestHealthEndpoint(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	rr := doRequest(router, "GET", "/api/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	result := parseJSON(rr)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", result["status"])
	}
}

func TestTransactionEndpoints(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	rr := doRequest(router, "POST", "/api/transactions", map[string]any{
		"symbol":           "COMB.N0000",
		"transaction_type": "BUY",
		"quantity":         1000.0,
		"price":            85.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add transaction: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(router, "GET", "/api/transactions?symbol=COMB.N0000", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get transactions: expected 200, got %d", rr.Code)
	}
	var transactions []map[string]any
	json.NewDecoder(rr.Body).Decode(&transactions)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}

	rr = doRequest(router, "GET", "/api/holdings", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get holdings: expected 200, got %d", rr.Code)
	}
	var holdings []map[string]any
	json.NewDecoder(rr.Body).Decode(&holdings)
	if len(holdings) != 1 || holdings[0]["symbol"] != "COMB.N0000" {
		t.Errorf("expected COMB.N0000 holding, got %v", holdings)
	}
}

func TestAddTransactionValidationError(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	// Selling with no holding is a validation error mapped to 400.
	rr := doRequest(router, "POST", "/api/transactions", map[string]any{
		"symbol":           "COMB.N0000",
		"transaction_type": "SELL",
		"quantity":         100.0,
		"price":            90.0,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	result := parseJSON(rr)
	if result["error_code"] != string(csetrack.ErrCodeValidation) {
		t.Errorf("expected validation error code, got %v", result["error_code"])
	}
}

func TestRulesEndpoints(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	rr := doRequest(router, "POST", "/api/rules", map[string]any{
		"rule_type": "CASH_BUFFER",
		"threshold": 20.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add rule: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	id := parseJSON(rr)["id"].(float64)

	rr = doRequest(router, "GET", "/api/rules", nil)
	var rules []map[string]any
	json.NewDecoder(rr.Body).Decode(&rules)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	rr = doRequest(router, "GET", "/api/rules/evaluate", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("evaluate: expected 200, got %d", rr.Code)
	}

	rr = doRequest(router, "DELETE", "/api/rules/"+jsonNumber(id), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete rule: expected 200, got %d", rr.Code)
	}
	rr = doRequest(router, "DELETE", "/api/rules/"+jsonNumber(id), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("double delete: expected 404, got %d", rr.Code)
	}
}

func TestSimulateEndpoint(t *testing.T) {
	router, core, cleanup := setupTestRouter(t)
	defer cleanup()

	if err := core.UpdateSettings(csetrack.Settings{TotalCapital: 200000, DisciplineBuyThreshold: 15}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if _, err := core.AddTransaction(csetrack.AddTransactionRequest{
		Symbol: "COMB.N0000", TransactionType: "BUY", Quantity: 1000, Price: 90,
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	rr := doRequest(router, "POST", "/api/simulate", map[string]any{
		"symbol":           "COMB.N0000",
		"transaction_type": "SELL",
		"quantity":         1000.0,
		"price":            95.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("simulate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	result := parseJSON(rr)
	if result["is_valid"] != true {
		t.Errorf("expected valid simulation, got %v", result)
	}

	rr = doRequest(router, "POST", "/api/simulate", map[string]any{
		"symbol":           "COMB.N0000",
		"transaction_type": "DIVIDEND",
		"quantity":         10.0,
		"price":            1.0,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("dividend simulate: expected 400, got %d", rr.Code)
	}
}

func TestAllocationEndpoints(t *testing.T) {
	router, core, cleanup := setupTestRouter(t)
	defer cleanup()

	if err := core.UpdateSettings(csetrack.Settings{TotalCapital: 100000, DisciplineBuyThreshold: 15}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	rr := doRequest(router, "POST", "/api/allocation/targets", map[string]any{
		"symbol":             "JKH.N0000",
		"allocation_percent": 50.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add target: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	id := parseJSON(rr)["id"].(float64)

	// Duplicate symbol conflicts.
	rr = doRequest(router, "POST", "/api/allocation/targets", map[string]any{
		"symbol":             "JKH.N0000",
		"allocation_percent": 10.0,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate target: expected 409, got %d", rr.Code)
	}

	rr = doRequest(router, "POST", "/api/allocation/targets/"+jsonNumber(id)+"/tranches", map[string]any{
		"label": "Dip buy",
		"price": 180.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add tranche: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var tranches []map[string]any
	json.NewDecoder(rr.Body).Decode(&tranches)
	if len(tranches) != 2 {
		t.Fatalf("expected 2 tranches, got %d", len(tranches))
	}

	if err := core.SetManualPrice("JKH.N0000", 193.25); err != nil {
		t.Fatalf("set price: %v", err)
	}
	rr = doRequest(router, "GET", "/api/allocation/plan?step=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("plan: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	plan := parseJSON(rr)
	if plan["results"] == nil {
		t.Errorf("expected plan results, got %v", plan)
	}
}

func TestPricesAndSettingsEndpoints(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	rr := doRequest(router, "POST", "/api/prices/manual", map[string]any{
		"symbol": "COMB.N0000",
		"price":  96.5,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("manual price: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(router, "GET", "/api/prices", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get prices: expected 200, got %d", rr.Code)
	}
	prices := parseJSON(rr)
	if prices["COMB.N0000"] == nil {
		t.Errorf("expected COMB.N0000 price, got %v", prices)
	}

	rr = doRequest(router, "PUT", "/api/settings", map[string]any{
		"total_capital":            250000.0,
		"discipline_buy_threshold": 12.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update settings: expected 200, got %d", rr.Code)
	}
	rr = doRequest(router, "GET", "/api/settings", nil)
	settings := parseJSON(rr)
	if settings["total_capital"].(float64) != 250000 {
		t.Errorf("expected capital 250000, got %v", settings["total_capital"])
	}

	rr = doRequest(router, "GET", "/api/operation-logs", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("operation logs: expected 200, got %d", rr.Code)
	}
}

func TestAdviceEndpointRequiresKey(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	rr := doRequest(router, "POST", "/api/advice", map[string]any{"model": "gemini-2.0-flash"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without api key, got %d", rr.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	rr := doRequest(router, "POST", "/api/rules", map[string]any{
		"rule_type": "CASH_BUFFER",
		"threshold": 20.0,
		"bogus":     true,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}

func jsonNumber(f float64) string {
	return strconv.FormatInt(int64(f), 10)
}
