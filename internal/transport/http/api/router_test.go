package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fxanalyst/internal/analysis"
	"fxanalyst/internal/analyzer"
	"fxanalyst/internal/audit"
	"fxanalyst/internal/gateway/provider"
	"fxanalyst/internal/metrics"
	"fxanalyst/internal/prompt"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const usdjpyBody = `{
  "symbol": "USDJPY",
  "period": 60,
  "candles": [
    {"time": "2024.05.01 05:00", "open": 155.1, "high": 155.3, "low": 155.0, "close": 155.2},
    {"time": "2024.05.01 06:00", "open": 155.2, "high": 155.4, "low": 155.1, "close": 155.3},
    {"time": "2024.05.01 07:00", "open": 155.3, "high": 155.5, "low": 155.2, "close": 155.4},
    {"time": "2024.05.01 08:00", "open": 155.4, "high": 155.6, "low": 155.3, "close": 155.5},
    {"time": "2024.05.01 09:00", "open": 155.5, "high": 155.7, "low": 155.4, "close": 155.6}
  ],
  "mid_candles": [],
  "low_candles": []
}`

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req *analysis.Request, requestID string) (analyzer.Result, error) {
	args := m.Called(ctx, req, requestID)
	return args.Get(0).(analyzer.Result), args.Error(1)
}

func newTestServer(t *testing.T, a Analyzer, rec *metrics.Recorder) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Analyzer: a, Metrics: rec})
	require.NoError(t, err)
	return srv.Handler()
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAnalyze_EndToEndWithStubbedCompletion(t *testing.T) {
	var gotPrompt string
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
			gotPrompt = body.Contents[0].Parts[0].Text
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Bullish bias"}]}}]}`)
	}))
	defer gemini.Close()

	dir := t.TempDir()
	rec := metrics.New()
	svc, err := analyzer.NewService(
		&provider.GeminiClient{BaseURL: gemini.URL, APIKey: "k", Model: "gemini-test", Timeout: 5 * time.Second},
		prompt.NewCompiler(prompt.StaticDirective("directive"), time.UTC),
		analyzer.WithAudit(audit.NewStore(dir, audit.FormatJSON, false)),
		analyzer.WithMetrics(rec),
	)
	require.NoError(t, err)

	w := post(newTestServer(t, svc, rec), usdjpyBody)
	svc.Wait()

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"status":   "success",
		"symbol":   "USDJPY",
		"analysis": "Bullish bias",
	}, decodeBody(t, w))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Contains(t, gotPrompt, "USDJPY")
	assert.Contains(t, gotPrompt, "(2024.05.01 09:00, 155.500, 155.700, 155.400, 155.600)")
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Requests().WithLabelValues("USDJPY", metrics.OutcomeSuccess)))
}

func TestAnalyze_ClientErrors(t *testing.T) {
	cases := map[string]string{
		"malformed json":  `{"symbol": "USDJPY", "candles": [`,
		"missing symbol":  `{"candles": []}`,
		"missing candles": `{"symbol": "USDJPY"}`,
		"bad ohlc type":   `{"symbol": "USDJPY", "candles": [{"time": "t", "open": "x", "high": 1, "low": 1, "close": 1}]}`,
		"empty body":      ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			a := new(MockAnalyzer)
			rec := metrics.New()
			w := post(newTestServer(t, a, rec), body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			out := decodeBody(t, w)
			assert.Equal(t, "error", out["status"])
			assert.NotEmpty(t, out["message"])
			assert.Equal(t, 1.0, testutil.ToFloat64(rec.Requests().WithLabelValues("", metrics.OutcomeInvalid)))
			a.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyze_UpstreamFailureIsServerError(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, mock.AnythingOfType("*analysis.Request"), mock.AnythingOfType("string")).
		Return(analyzer.Result{}, &provider.UpstreamError{StatusCode: 429, Body: `{"error":{"message":"quota"}}`})

	w := post(newTestServer(t, a, nil), usdjpyBody)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "error", out["status"])
	assert.Contains(t, out["message"], "quota")
	_, hasAnalysis := out["analysis"]
	assert.False(t, hasAnalysis)
	a.AssertExpectations(t)
}

func TestAnalyze_TransportFailureIsServerError(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analyzer.Result{}, &provider.TransportError{Op: "post", Err: errors.New("connection refused")})

	w := post(newTestServer(t, a, nil), usdjpyBody)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", decodeBody(t, w)["status"])
}

func TestAnalyze_RequestIDPropagates(t *testing.T) {
	a := new(MockAnalyzer)
	a.On("Analyze", mock.Anything, mock.Anything, "ea-42").
		Return(analyzer.Result{Symbol: "USDJPY", Analysis: "x"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(usdjpyBody))
	req.Header.Set(HeaderRequestID, "ea-42")
	w := httptest.NewRecorder()
	newTestServer(t, a, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ea-42", w.Header().Get(HeaderRequestID))
	a.AssertExpectations(t)
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	a := new(MockAnalyzer)
	srv, err := NewServer(ServerConfig{Analyzer: a, MaxBodyBytes: 16})
	require.NoError(t, err)

	w := post(srv.Handler(), usdjpyBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "too large")
}

func TestHealthAndMetrics(t *testing.T) {
	rec := metrics.New()
	h := newTestServer(t, new(MockAnalyzer), rec)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	rec.RecordRequest("EURUSD", metrics.OutcomeSuccess)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `fxanalyst_analyze_requests_total{outcome="success",symbol="EURUSD"} 1`)
}

func TestNewServer_RequiresAnalyzer(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestStart_StopsOnCancel(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Analyzer: new(MockAnalyzer)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

type fixedProvider string

func (fixedProvider) ID() string { return "fixed" }

func (p fixedProvider) Call(context.Context, provider.ChatPayload) (string, error) {
	return string(p), nil
}

func TestAnalyze_LongSymbolsDoNotGrowMetricSeries(t *testing.T) {
	rec := metrics.New()
	svc, err := analyzer.NewService(fixedProvider("ok"),
		prompt.NewCompiler(prompt.StaticDirective("directive"), time.UTC),
		analyzer.WithMetrics(rec))
	require.NoError(t, err)
	h := newTestServer(t, svc, rec)

	for i := 0; i < 20; i++ {
		symbol := strings.Repeat("A", 5000) + strconv.Itoa(i)
		body := strings.Replace(usdjpyBody, `"USDJPY"`, `"`+symbol+`"`, 1)
		w := post(h, body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(rec.Requests()))
	assert.Equal(t, 20.0, testutil.ToFloat64(rec.Requests().WithLabelValues(metrics.OtherSymbol, metrics.OutcomeSuccess)))
}
