package provider

import (
	"context"
	"errors"
	"fmt"
)

// ChatPayload 是一次单轮补全请求。
type ChatPayload struct {
	Prompt    string
	RequestID string
}

// ModelProvider 由补全服务客户端实现；HTTP 层与编排层只依赖该接口。
type ModelProvider interface {
	ID() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

// ErrConfig 表示在发起请求前即可判定的配置/入参问题。
var ErrConfig = errors.New("completion client misconfigured")

// UpstreamError 表示补全服务返回了非 2xx 状态，Body 为原始响应体。
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API Error: status=%d: %s", e.StatusCode, e.Body)
}

// TransportError 表示连接、超时或响应体无法解析。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
