// Package analyzer 串联一次分析请求：审计落盘 → prompt 编译 → 调用补全服务。
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fxanalyst/internal/analysis"
	"fxanalyst/internal/audit"
	"fxanalyst/internal/gateway/provider"
	"fxanalyst/internal/logger"
	"fxanalyst/internal/metrics"
	"fxanalyst/internal/prompt"
)

// Result 是一次成功分析的输出。
type Result struct {
	RequestID string
	Symbol    string
	Analysis  string
}

// Service 无跨请求可变状态，可被并发调用。
type Service struct {
	provider provider.ModelProvider
	compiler *prompt.Compiler
	audit    *audit.Store
	metrics  *metrics.Recorder
	now      func() time.Time

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

type Option func(*Service)

func WithAudit(store *audit.Store) Option {
	return func(s *Service) { s.audit = store }
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithClock 覆盖当前时间来源（测试用）。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(p provider.ModelProvider, c *prompt.Compiler, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("analyzer requires a model provider")
	}
	if c == nil {
		c = prompt.NewCompiler(nil, nil)
	}
	s := &Service{provider: p, compiler: c, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Analyze 处理一个已通过校验的请求。补全服务的错误原样返回给调用方。
func (s *Service) Analyze(ctx context.Context, req *analysis.Request, requestID string) (Result, error) {
	if req == nil {
		return Result{}, fmt.Errorf("analyze: nil request")
	}
	now := s.now()
	logger.Infof("📈 收到 %s 的数据 (req=%s, candles=%d/%d/%d, corr=%q)", req.Symbol, requestID,
		len(req.Candles), len(req.MidCandles), len(req.LowCandles), req.CorrelationSymbol())

	s.recordAsync(func() { s.audit.RecordRequest(req, now) })

	text, err := s.compiler.Compile(req, now)
	if err != nil {
		s.metrics.RecordRequest(req.Symbol, metrics.OutcomeInternal)
		return Result{}, fmt.Errorf("compile prompt: %w", err)
	}
	s.metrics.RecordPromptSize(len(text))
	s.recordAsync(func() { s.audit.RecordPrompt(req.Symbol, text, now) })

	start := time.Now()
	out, err := s.provider.Call(ctx, provider.ChatPayload{Prompt: text, RequestID: requestID})
	outcome := classify(err)
	if err == nil && out == provider.NoAnalysisText {
		outcome = metrics.OutcomeNoAnalysis
	}
	s.metrics.RecordCompletion(s.provider.ID(), outcome, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordRequest(req.Symbol, outcome)
		logger.Errorf("调用 %s 失败 (symbol=%s req=%s): %v", s.provider.ID(), req.Symbol, requestID, err)
		return Result{}, err
	}
	s.metrics.RecordRequest(req.Symbol, metrics.OutcomeSuccess)

	logger.InfoBlock(strings.Join([]string{
		strings.Repeat("-", 50),
		out,
		strings.Repeat("-", 50),
	}, "\n"))
	return Result{RequestID: requestID, Symbol: req.Symbol, Analysis: out}, nil
}

// Wait 等待尚未完成的审计写入（测试使用）。
func (s *Service) Wait() {
	s.pending.Wait()
}

// Close 停止派发后台审计写入并等待已派发的完成；之后的写入在请求内同步执行。
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
}

func (s *Service) recordAsync(fn func()) {
	if s.audit == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		runAudit(fn)
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.pending.Done()
		runAudit(fn)
	}()
}

func runAudit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("audit panic recovered", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func classify(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var ue *provider.UpstreamError
	var te *provider.TransportError
	switch {
	case errors.As(err, &ue):
		return metrics.OutcomeUpstream
	case errors.As(err, &te):
		return metrics.OutcomeTransport
	default:
		return metrics.OutcomeInternal
	}
}
