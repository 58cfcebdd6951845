package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/modelsite/modelsite-go/pkg/config"
	"github.com/modelsite/modelsite-go/pkg/metadatastore"
	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel"
)

// createTestServer creates a server backed by a temporary database
func createTestServer(t *testing.T) *Server {
	t.Helper()
	return createTestServerWithConfig(t, nil)
}

// createTestServerWithConfig lets a test adjust the configuration before the
// server is built
func createTestServerWithConfig(t *testing.T, adjust func(*config.Config)) *Server {
	t.Helper()
	log := zaptest.NewLogger(t)

	store, err := metadatastore.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Environment:     "test",
		LogLevel:        "debug",
		LogFormat:       "console",
		Port:            "0",
		MaxUploadMB:     8,
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: 1,
	}
	if adjust != nil {
		adjust(cfg)
	}
	require.NoError(t, cfg.Validate())
	return NewServer(cfg, store, mlmodel.NewService(mlmodel.DefaultRegistry(), log), log)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// linearCSV returns n rows of y = 3*x1 - 2*x2 plus a small deterministic offset
func linearCSV(n int) string {
	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := 0; i < n; i++ {
		x1 := float64(i)
		x2 := float64((i * 7) % 13)
		y := 3*x1 - 2*x2 + 0.25*float64(i%3)
		fmt.Fprintf(&b, "%g,%g,%g\n", x1, x2, y)
	}
	return b.String()
}

// threeValueCSV is linearCSV with y collapsed to three values
func threeValueCSV(n int) string {
	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%d,%d\n", i, (i*7)%13, i%3)
	}
	return b.String()
}

// multipartRequest builds a POST with a file part and form fields
func multipartRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRootAndStatus(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Welcome to ModelSite Backend", decodeBody(t, rr)["message"])

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, "Backend is running properly", decodeBody(t, rr)["message"])
}

func TestHealthAndReady(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decodeBody(t, rr)["status"])

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decodeBody(t, rr)["status"])
}

func TestRequestIDAndCORSHeaders(t *testing.T) {
	s := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := serve(s, req)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = serve(s, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestCORSCredentialsWithExplicitOrigins(t *testing.T) {
	s := createTestServerWithConfig(t, func(cfg *config.Config) {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
		cfg.AllowCredentials = true
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := serve(s, req)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = serve(s, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSignupAndLogin(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, jsonRequest(http.MethodPost, "/signup", `{"username":"alice","password":"secret"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"success": "success"}, decodeBody(t, rr))

	rr = serve(s, jsonRequest(http.MethodPost, "/signup", `{"username":"alice","password":"other"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"failed": "failed"}, decodeBody(t, rr))

	rr = serve(s, jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"secret"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "true", rr.Body.String(), "duplicate signup must keep the original password")

	rr = serve(s, jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"other"}`))
	assert.JSONEq(t, "false", rr.Body.String())

	rr = serve(s, jsonRequest(http.MethodPost, "/login", `{"username":`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeBody(t, rr), "error")

	rr = serve(s, jsonRequest(http.MethodPost, "/signup", `{"username":"","password":"x"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestChangePasswordAndDeleteUser(t *testing.T) {
	s := createTestServer(t)
	serve(s, jsonRequest(http.MethodPost, "/signup", `{"username":"bob","password":"one"}`))

	rr := serve(s, jsonRequest(http.MethodPost, "/change-password", `{"username":"bob","new_password":"two"}`))
	assert.Equal(t, map[string]any{"updated": true}, decodeBody(t, rr))

	rr = serve(s, jsonRequest(http.MethodPost, "/login", `{"username":"bob","password":"two"}`))
	assert.JSONEq(t, "true", rr.Body.String())

	rr = serve(s, jsonRequest(http.MethodPost, "/change-password", `{"username":"carol","new_password":"x"}`))
	assert.Equal(t, map[string]any{"updated": false}, decodeBody(t, rr))

	rr = serve(s, httptest.NewRequest(http.MethodDelete, "/users/bob", nil))
	assert.Equal(t, map[string]any{"deleted": true}, decodeBody(t, rr))

	rr = serve(s, httptest.NewRequest(http.MethodDelete, "/users/bob", nil))
	assert.Equal(t, map[string]any{"deleted": false}, decodeBody(t, rr))
}

func TestLinearRegressionEndToEnd(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, multipartRequest(t, "/linear-regression", "data.csv", linearCSV(100), map[string]string{
		"target_column": "y",
		"metrics":       `["mse","r2"]`,
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.NotContains(t, body, "error")

	assert.Equal(t, "Linear Regression", body["model"])
	assert.Equal(t, "Model executed successfully!", body["message"])

	metricsBody, ok := body["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, metricsBody, 2)
	assert.Contains(t, metricsBody, "mse")
	assert.Contains(t, metricsBody, "r2_score")

	coefficients, ok := body["coefficients"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, coefficients, 2)
	assert.Contains(t, coefficients, "x1")
	assert.Contains(t, coefficients, "x2")

	for name, v := range coefficients {
		assert.Equal(t, metrics.Round4(v.(float64)), v, "coefficient %s must have four decimals", name)
	}

	intercept, ok := body["intercept"].(float64)
	assert.True(t, ok, "intercept must be a scalar")
	assert.Equal(t, metrics.Round4(intercept), intercept)

	preview, ok := body["predictions_preview"].([]any)
	require.True(t, ok)
	assert.Len(t, preview, 10)
}

func TestLinearRegressionCategoricalTarget(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, multipartRequest(t, "/linear-regression", "data.csv", threeValueCSV(100), map[string]string{
		"target_column": "y",
	}))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body, "error")
	assert.NotContains(t, body, "metrics")
}

func TestModelEndpointsReportErrors(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, multipartRequest(t, "/decision-trees", "data.json", "{}", map[string]string{"target_column": "y"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], ".json")

	rr = serve(s, multipartRequest(t, "/svm", "data.csv", linearCSV(30), map[string]string{"target_column": "price"}))
	assert.Equal(t, "Target column 'price' not found in dataset.", decodeBody(t, rr)["error"])

	rr = serve(s, multipartRequest(t, "/bagging", "", "", map[string]string{"target_column": "y"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(s, multipartRequest(t, "/bagging", "data.csv", linearCSV(30), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(s, multipartRequest(t, "/boosting", "data.csv", linearCSV(30), map[string]string{"target_column": "y"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEnsembleEndpoints(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, multipartRequest(t, "/random-forest", "data.csv", linearCSV(60), map[string]string{"target_column": "y"}))
	body := decodeBody(t, rr)
	require.NotContains(t, body, "error")
	assert.Equal(t, "Random Forest (Regression)", body["model"])
	assert.Contains(t, body, "parameters")
	assert.Contains(t, body, "feature_importances")

	rr = serve(s, multipartRequest(t, "/bagging", "data.csv", linearCSV(60), map[string]string{"target_column": "y"}))
	body = decodeBody(t, rr)
	require.NotContains(t, body, "error")
	assert.Equal(t, "Bagging Regression", body["model"])
	assert.Contains(t, body["metrics"], "rmse")
}

func TestNeuralNetworkEndpoint(t *testing.T) {
	s := createTestServer(t)

	requestData := `{
		"target_column": "y",
		"model_config": {
			"layers": [{"units": 8, "activation": "tanh"}],
			"learning_rate": 0.01,
			"epochs": 5,
			"batch_size": 16,
			"problem_type": "regression"
		},
		"metrics": ["mse"]
	}`
	rr := serve(s, multipartRequest(t, "/deep-neural-network", "data.csv", linearCSV(80), map[string]string{
		"request_data": requestData,
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.NotContains(t, body, "error")

	assert.Equal(t, "Custom Deep Neural Network", body["model_type"])
	assert.Equal(t, map[string]any{"mse": body["metrics"].(map[string]any)["mse"]}, body["metrics"])

	losses, ok := body["training_loss"].([]any)
	require.True(t, ok)
	assert.Len(t, losses, 5)

	configUsed, ok := body["config_used"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 16.0, configUsed["batch_size"])
}

func TestNeuralNetworkDivergenceReportsError(t *testing.T) {
	s := createTestServer(t)

	requestData := `{
		"target_column": "y",
		"model_config": {
			"layers": [{"units": 16, "activation": "relu"}, {"units": 16, "activation": "relu"}],
			"learning_rate": 1e200,
			"epochs": 5,
			"problem_type": "regression"
		}
	}`
	rr := serve(s, multipartRequest(t, "/deep-neural-network", "data.csv", linearCSV(80), map[string]string{
		"request_data": requestData,
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Contains(t, body["error"], "learning rate")
	assert.NotContains(t, body, "metrics")
}

func TestWriteJSONResponseUnencodable(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusCreated, map[string]any{"mse": math.Inf(1)})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, decodeBody(t, rr)["error"], "Failed to encode response")
}

func TestNeuralNetworkRejectsBadRequestData(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, multipartRequest(t, "/deep-neural-network", "data.csv", linearCSV(30), map[string]string{
		"request_data": `{"target_column": "y",`,
	}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "Invalid JSON in request_data")

	rr = serve(s, multipartRequest(t, "/deep-neural-network", "data.csv", linearCSV(30), map[string]string{
		"request_data": `{"target_column": "y", "model_config": {"layers": [{"units": 4, "activation": "softplus"}]}}`,
	}))
	assert.Contains(t, decodeBody(t, rr)["error"], "softplus")

	rr = serve(s, multipartRequest(t, "/deep-neural-network", "data.csv", linearCSV(30), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestModelFamiliesAndRecommendation(t *testing.T) {
	s := createTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/model-families", nil))
	families, ok := decodeBody(t, rr)["families"].([]any)
	require.True(t, ok)
	assert.Len(t, families, 7)

	rr = serve(s, multipartRequest(t, "/recommend-model", "data.csv", linearCSV(50), map[string]string{"target_column": "y"}))
	body := decodeBody(t, rr)
	require.NotContains(t, body, "error")
	assert.NotEmpty(t, body["recommended_family"])
	assert.NotEmpty(t, body["reasoning"])
}

func TestModelHistoryRoundTrip(t *testing.T) {
	s := createTestServer(t)

	saved := `{"accuracy":0.9333,"f1_score":0.93,"confusion_matrix":[[5,0],[1,9]]}`
	form := url.Values{
		"username":      {"alice"},
		"dataset_name":  {"iris.csv"},
		"model_type":    {"Logistic Regression"},
		"target_column": {"species"},
		"metrics":       {saved},
	}
	req := httptest.NewRequest(http.MethodPost, "/save-model-result", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(s, req)
	assert.Equal(t, map[string]any{"message": "Model result saved successfully"}, decodeBody(t, rr))

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/model-history/alice", nil))
	var listed struct {
		History []struct {
			Model        string          `json:"model"`
			DatasetName  string          `json:"dataset_name"`
			TargetColumn string          `json:"target_column"`
			Metrics      json.RawMessage `json:"metrics"`
			Metric       *float64        `json:"metric"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed.History, 1)
	entry := listed.History[0]
	assert.Equal(t, "Logistic Regression", entry.Model)
	assert.Equal(t, "iris.csv", entry.DatasetName)
	assert.JSONEq(t, saved, string(entry.Metrics))
	require.NotNil(t, entry.Metric)
	assert.Equal(t, 0.9333, *entry.Metric)

	rr = serve(s, httptest.NewRequest(http.MethodDelete, "/clear-model-history/alice", nil))
	assert.Equal(t, map[string]any{"message": "All model history cleared for alice"}, decodeBody(t, rr))

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/model-history/alice", nil))
	assert.Equal(t, map[string]any{"history": []any{}}, decodeBody(t, rr))
}

func TestSaveModelResultValidation(t *testing.T) {
	s := createTestServer(t)

	form := url.Values{
		"username":      {"alice"},
		"dataset_name":  {"iris.csv"},
		"model_type":    {"Logistic Regression"},
		"target_column": {"species"},
		"metrics":       {"{not json"},
	}
	req := httptest.NewRequest(http.MethodPost, "/save-model-result", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(s, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "metrics")

	rr = serve(s, multipartRequest(t, "/save-model-result", "", "", map[string]string{
		"username":      "alice",
		"dataset_name":  "iris.csv",
		"model_type":    "Logistic Regression",
		"target_column": "species",
		"metrics":       `{"accuracy":0.9}`,
	}))
	assert.Equal(t, map[string]any{"message": "Model result saved successfully"}, decodeBody(t, rr))

	form.Del("dataset_name")
	req = httptest.NewRequest(http.MethodPost, "/save-model-result", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = serve(s, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
