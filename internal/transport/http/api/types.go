package apihttp

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AnalyzeResponse 是 /analyze 的响应体；成功时带 symbol 与 analysis，失败时带 message。
type AnalyzeResponse struct {
	Status   string `json:"status"`
	Symbol   string `json:"symbol,omitempty"`
	Analysis string `json:"analysis,omitempty"`
	Message  string `json:"message,omitempty"`
}
