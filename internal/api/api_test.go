package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaescalo/property-deployer/internal/api"
	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/papi"
	"github.com/jaescalo/property-deployer/internal/service"
	"github.com/jaescalo/property-deployer/internal/storage/memory"
)

// testServer creates a test server with in-memory storage and the shim
// property client, so deployments run end to end without a remote system.
type testServer struct {
	handler      http.Handler
	store        *memory.Store
	shim         *papi.Shim
	bootstrapKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	bootstrapKey := "test-bootstrap-key"

	shim, err := papi.NewShim("")
	if err != nil {
		t.Fatalf("Failed to create shim: %v", err)
	}

	orch := service.NewOrchestrator(shim, service.Options{
		PollInterval:      time.Millisecond,
		ActivationTimeout: 5 * time.Second,
		Retry:             service.RetryPolicy{Attempts: 1, Base: time.Millisecond},
	})
	deployments := service.NewDeploymentService(store, orch, 30*time.Second)

	handler := api.NewRouter(store, deployments, orch.Resolver(), bootstrapKey)

	return &testServer{
		handler:      handler,
		store:        store,
		shim:         shim,
		bootstrapKey: bootstrapKey,
	}
}

func (ts *testServer) request(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// waitForDeployment polls the deployment record until a final status.
func (ts *testServer) waitForDeployment(t *testing.T, id string) *domain.Deployment {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rr := ts.request("GET", "/api/v1/deployments/"+id, nil, ts.bootstrapKey)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200 polling deployment, got %d: %s", rr.Code, rr.Body.String())
		}
		var dep domain.Deployment
		_ = json.Unmarshal(rr.Body.Bytes(), &dep)
		switch dep.Status {
		case domain.DeploymentPending, domain.DeploymentRunning:
			time.Sleep(5 * time.Millisecond)
		default:
			return &dep
		}
	}
	t.Fatal("Deployment did not reach a final status")
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	// Request without auth header
	rr := ts.request("GET", "/api/v1/deployments", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with invalid auth header format
	req := httptest.NewRequest("GET", "/api/v1/deployments", nil)
	req.Header.Set("Authorization", "Basic invalid")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	// Request with an unknown API key
	rr = ts.request("GET", "/api/v1/deployments", nil, "invalid-key")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestBootstrapKeyAuth(t *testing.T) {
	ts := newTestServer(t)

	// Bootstrap key should work when no API keys exist
	rr := ts.request("GET", "/api/v1/deployments", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bootstrap key, got %d", rr.Code)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Create API key using bootstrap key
	createReq := domain.CreateAPIKeyRequest{Name: "Test Key"}
	rr := ts.request("POST", "/api/v1/keys", createReq, ts.bootstrapKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var createResp domain.CreateAPIKeyResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &createResp)
	if createResp.Key == "" {
		t.Error("Expected key to be returned on creation")
	}
	if createResp.Name != "Test Key" {
		t.Errorf("Expected name 'Test Key', got '%s'", createResp.Name)
	}

	// Use the new API key
	rr = ts.request("GET", "/api/v1/deployments", nil, createResp.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with new API key, got %d", rr.Code)
	}

	// The bootstrap key stops working once a real key exists
	rr = ts.request("GET", "/api/v1/deployments", nil, ts.bootstrapKey)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with bootstrap key, got %d", rr.Code)
	}

	// List API keys
	rr = ts.request("GET", "/api/v1/keys", nil, createResp.Key)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var keys []*domain.APIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &keys)
	if len(keys) != 1 {
		t.Errorf("Expected 1 key, got %d", len(keys))
	}

	// Delete API key
	rr = ts.request("DELETE", "/api/v1/keys/"+createResp.ID, nil, createResp.Key)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
}

func TestDeploymentEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	ts.shim.AddProperty("www-property", "prp_1", 399)

	req := map[string]any{
		"name":               "www-property",
		"ruleTree":           json.RawMessage(`{"rules":{"name":"default"}}`),
		"versionNotes":       "release 2026-08",
		"activateStaging":    true,
		"activateProduction": true,
	}
	rr := ts.request("POST", "/api/v1/deployments", req, ts.bootstrapKey)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var submitted domain.Deployment
	_ = json.Unmarshal(rr.Body.Bytes(), &submitted)
	if submitted.ID == "" {
		t.Fatal("Expected the submitted deployment to carry an id")
	}
	if submitted.Status != domain.DeploymentPending {
		t.Errorf("Expected pending status on submission, got %s", submitted.Status)
	}

	dep := ts.waitForDeployment(t, submitted.ID)
	if dep.Status != domain.DeploymentSucceeded {
		t.Fatalf("Expected succeeded, got %s (error: %s)", dep.Status, dep.Error)
	}
	if dep.PropertyID != "prp_1" {
		t.Errorf("Expected property ID prp_1, got %q", dep.PropertyID)
	}
	if dep.CurrentVersion != 399 || dep.NewVersion != "400" {
		t.Errorf("Expected 399 -> 400, got %d -> %s", dep.CurrentVersion, dep.NewVersion)
	}
	if dep.StagingOutcome != domain.OutcomeActive || dep.ProductionOutcome != domain.OutcomeActive {
		t.Errorf("Expected ACTIVE on both networks, got staging=%s production=%s",
			dep.StagingOutcome, dep.ProductionOutcome)
	}
	if dep.APIResponses == "" {
		t.Error("Expected the raw API responses to be recorded")
	}

	// The deployment shows up in the list and in the property filter.
	rr = ts.request("GET", "/api/v1/deployments?property=www-property", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var deps []*domain.Deployment
	_ = json.Unmarshal(rr.Body.Bytes(), &deps)
	if len(deps) != 1 {
		t.Errorf("Expected 1 deployment for the property, got %d", len(deps))
	}
}

func TestDeploymentFailedActivationIsPartial(t *testing.T) {
	ts := newTestServer(t)
	ts.shim.AddProperty("www-property", "prp_1", 399)
	ts.shim.FailOn[domain.NetworkStaging] = "edge hostname not provisioned"

	req := map[string]any{
		"name":            "www-property",
		"ruleTree":        json.RawMessage(`{"rules":{}}`),
		"versionNotes":    "notes",
		"activateStaging": true,
	}
	rr := ts.request("POST", "/api/v1/deployments", req, ts.bootstrapKey)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var submitted domain.Deployment
	_ = json.Unmarshal(rr.Body.Bytes(), &submitted)

	dep := ts.waitForDeployment(t, submitted.ID)
	if dep.Status != domain.DeploymentPartial {
		t.Fatalf("Expected partial, got %s", dep.Status)
	}
	if dep.NewVersion != "400" {
		t.Errorf("Expected the created version to be reported, got %q", dep.NewVersion)
	}
	if dep.StagingOutcome != domain.OutcomeFailed {
		t.Errorf("Expected staging outcome FAILED, got %s", dep.StagingOutcome)
	}
}

func TestDeploymentValidation(t *testing.T) {
	ts := newTestServer(t)

	// Missing name and rule tree
	rr := ts.request("POST", "/api/v1/deployments", map[string]any{
		"versionNotes": "notes",
	}, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	// Rule tree that is not a JSON object
	rr = ts.request("POST", "/api/v1/deployments", map[string]any{
		"name":         "www-property",
		"ruleTree":     json.RawMessage(`[1, 2, 3]`),
		"versionNotes": "notes",
	}, ts.bootstrapKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a non-object rule tree, got %d", rr.Code)
	}
}

func TestGetUnknownDeployment(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/api/v1/deployments/no-such-id", nil, ts.bootstrapKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestPropertyLookup(t *testing.T) {
	ts := newTestServer(t)
	ts.shim.AddProperty("www-property", "prp_1", 399)

	rr := ts.request("GET", "/api/v1/properties/www-property", nil, ts.bootstrapKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var summary domain.PropertySummary
	_ = json.Unmarshal(rr.Body.Bytes(), &summary)
	if summary.PropertyID != "prp_1" {
		t.Errorf("Expected property ID prp_1, got %q", summary.PropertyID)
	}
	if summary.ProductionVersion != 399 {
		t.Errorf("Expected production version 399, got %d", summary.ProductionVersion)
	}

	// Unknown property names map to 404
	rr = ts.request("GET", "/api/v1/properties/no-such-property", nil, ts.bootstrapKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}
