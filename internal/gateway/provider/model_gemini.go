package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fxanalyst/internal/logger"
	"fxanalyst/internal/pkg/jsonutil"
	"fxanalyst/internal/pkg/text"

	"github.com/tidwall/gjson"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-3-flash-preview"

	// NoAnalysisText 在响应中找不到文本片段时返回，属于正常结果而非错误。
	NoAnalysisText = "No analysis generated"
)

// GeminiClient 调用 generateContent 接口；每次调用恰好发送一个请求，不重试。
type GeminiClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

// geminiResponse 中每一层都可能缺失，用指针/切片表达可选性。
type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content *geminiResponseContent `json:"content"`
}

type geminiResponseContent struct {
	Parts []geminiResponsePart `json:"parts"`
}

type geminiResponsePart struct {
	Text *string `json:"text"`
}

func (c *GeminiClient) ID() string {
	return "gemini:" + c.model()
}

func (c *GeminiClient) model() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultGeminiModel
}

func (c *GeminiClient) endpoint() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		base, url.PathEscape(c.model()), url.QueryEscape(c.APIKey))
}

func (c *GeminiClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}

// Call 发送 prompt 并返回首个文本片段。
func (c *GeminiClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", fmt.Errorf("%w: api key is empty", ErrConfig)
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", ErrConfig)
	}
	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: payload.Prompt}},
	}}})
	if err != nil {
		return "", fmt.Errorf("encode gemini request: %w", err)
	}
	model := c.model()
	logger.LogLLMRequest(model, payload.RequestID, payload.Prompt, jsonutil.Pretty(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	logger.Debugf("[AI] 请求: POST %s key=****%s bytes=%d",
		strings.SplitN(c.endpoint(), "?", 2)[0], maskTail(c.APIKey), len(body))

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", &TransportError{Op: "post", Err: redactKey(err, c.APIKey)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "read body", Err: err}
	}
	logger.LogLLMResponse(model, payload.RequestID, resp.StatusCode, jsonutil.Pretty(raw))

	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String())
		if msg == "" {
			msg = resp.Status
		}
		logger.Warnf("[AI] %s 返回 status=%d: %s", model, resp.StatusCode, text.Truncate(msg, 300))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &TransportError{Op: "decode response", Err: err}
	}
	out := extractText(parsed)
	logger.Debugf("[AI] %s 完成 dur=%s chars=%d", model, time.Since(start), len(out))
	return out, nil
}

// extractText 依次取 candidates[0] → content → parts[0] → text；任一环缺失则返回 NoAnalysisText。
func extractText(resp geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return NoAnalysisText
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return NoAnalysisText
	}
	if len(content.Parts) == 0 {
		return NoAnalysisText
	}
	part := content.Parts[0].Text
	if part == nil {
		return NoAnalysisText
	}
	return *part
}

func maskTail(key string) string {
	if len(key) > 4 {
		return key[len(key)-4:]
	}
	return ""
}

// redactKey 避免 *url.Error 中携带的完整 URL 泄露 key。
func redactKey(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(msg, key, "****"))
}
