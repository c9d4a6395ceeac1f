package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fxanalyst/internal/analysis"
	"fxanalyst/internal/logger"
	"fxanalyst/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var fixedAt = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)

func sample(symbol string) *analysis.Request {
	return &analysis.Request{
		Version:    1,
		Symbol:     symbol,
		Period:     60,
		Candles:    market.Candles{{Time: "2024.05.01 09:00", Open: 1.07, High: 1.08, Low: 1.06, Close: 1.075}},
		MidCandles: market.Candles{},
		LowCandles: market.Candles{},
	}
}

func TestRecordRequest_WritesJSONNamedBySymbolAndSecond(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	s := NewStore(dir, "", false)

	entry := s.RecordRequest(sample("EURUSD"), fixedAt)
	require.NotEmpty(t, entry.RequestPath)
	assert.Equal(t, filepath.Join(dir, "EURUSD_20240501_093015.json"), entry.RequestPath)

	raw, err := os.ReadFile(entry.RequestPath)
	require.NoError(t, err)
	var back analysis.Request
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "EURUSD", back.Symbol)
	assert.Equal(t, sample("EURUSD").Candles, back.Candles)
	assert.Contains(t, string(raw), "\n  \"symbol\"")
}

func TestRecordRequest_YAMLFormat(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "YAML", false)
	entry := s.RecordRequest(sample("USDJPY"), fixedAt)
	require.Equal(t, filepath.Join(dir, "USDJPY_20240501_093015.yaml"), entry.RequestPath)

	raw, err := os.ReadFile(entry.RequestPath)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &back))
	assert.Equal(t, "USDJPY", back["symbol"])
}

func TestRecordRequest_DistinctSymbolsAndSecondsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, FormatJSON, false)
	a := s.RecordRequest(sample("EURUSD"), fixedAt)
	b := s.RecordRequest(sample("USDJPY"), fixedAt)
	c := s.RecordRequest(sample("EURUSD"), fixedAt.Add(time.Second))
	d := s.RecordRequest(sample("EURUSD"), fixedAt.Add(400*time.Millisecond))

	assert.NotEqual(t, a.RequestPath, b.RequestPath)
	assert.NotEqual(t, a.RequestPath, c.RequestPath)
	assert.Equal(t, a.RequestPath, d.RequestPath, "same symbol and second overwrites")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecordRequest_FailureIsSwallowedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	s := NewStore(filepath.Join(blocker, "logs"), FormatJSON, true)

	assert.NotPanics(t, func() {
		entry := s.RecordRequest(sample("EURUSD"), fixedAt)
		assert.Empty(t, entry.RequestPath)
		assert.Empty(t, s.RecordPrompt("EURUSD", "prompt", fixedAt))
	})
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "audit write failed")
}

func TestRecordPrompt(t *testing.T) {
	dir := t.TempDir()
	off := NewStore(dir, FormatJSON, false)
	assert.Empty(t, off.RecordPrompt("EURUSD", "p", fixedAt))

	on := NewStore(dir, FormatJSON, true)
	path := on.RecordPrompt("EURUSD", "compiled prompt", fixedAt)
	assert.Equal(t, filepath.Join(dir, "EURUSD_20240501_093015_prompt.txt"), path)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "compiled prompt", string(raw))
}

func TestSanitizeSymbol(t *testing.T) {
	assert.Equal(t, "EUR_USD", sanitizeSymbol("EUR/USD"))
	assert.Equal(t, "US30.cash", sanitizeSymbol("US30.cash"))
	assert.Equal(t, "_x", sanitizeSymbol("../x"))
	assert.Equal(t, "a_b", sanitizeSymbol("a b"))
	assert.Equal(t, "UNKNOWN", sanitizeSymbol("  "))
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, FormatJSON, true)
	s.Now = func() time.Time { return fixedAt }

	old := s.RecordRequest(sample("EURUSD"), fixedAt.Add(-72*time.Hour)).RequestPath
	fresh := s.RecordRequest(sample("USDJPY"), fixedAt).RequestPath
	other := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o644))

	past := fixedAt.Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))
	require.NoError(t, os.Chtimes(fresh, fixedAt, fixedAt))

	assert.Equal(t, 1, s.Prune(24*time.Hour))
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	assert.Zero(t, s.Prune(0))
	assert.Zero(t, NewStore(filepath.Join(dir, "missing"), "", false).Prune(time.Hour))
}
