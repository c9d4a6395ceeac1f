package apihttp

import (
	"context"
	"errors"
	"io"
	"net/http"

	"fxanalyst/internal/analysis"
	"fxanalyst/internal/analyzer"
	"fxanalyst/internal/logger"
	"fxanalyst/internal/metrics"

	"github.com/gin-gonic/gin"
)

const defaultMaxBodyBytes int64 = 8 << 20

// Analyzer 由 analyzer.Service 实现。
type Analyzer interface {
	Analyze(ctx context.Context, req *analysis.Request, requestID string) (analyzer.Result, error)
}

// Router 挂载分析接口。
type Router struct {
	analyzer Analyzer
	metrics  *metrics.Recorder
	maxBody  int64
}

func NewRouter(a Analyzer, rec *metrics.Recorder, maxBody int64) *Router {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Router{analyzer: a, metrics: rec, maxBody: maxBody}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/analyze", r.handleAnalyze)
}

func (r *Router) handleAnalyze(c *gin.Context) {
	reqID := requestIDFrom(c)
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, r.maxBody))
	if err != nil {
		msg := "cannot read request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		r.reject(c, reqID, &analysis.ValidationError{Errors: []analysis.FieldError{{Field: "body", Message: msg}}})
		return
	}

	req, err := analysis.Decode(raw)
	if err != nil {
		r.reject(c, reqID, err)
		return
	}

	// 调用方断开连接不会中止进行中的分析；上限由补全客户端的超时决定
	res, err := r.analyzer.Analyze(context.WithoutCancel(c.Request.Context()), req, reqID)
	if err != nil {
		// 补全服务相关的结局已由 analyzer 计入指标
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, AnalyzeResponse{
		Status:   StatusSuccess,
		Symbol:   res.Symbol,
		Analysis: res.Analysis,
	})
}

// reject 处理进入 analyzer 之前的失败；此时 symbol 尚不可信，指标中记为空。
func (r *Router) reject(c *gin.Context, reqID string, err error) {
	var verr *analysis.ValidationError
	if errors.As(err, &verr) {
		logger.Warnf("[api] 请求被拒绝 ip=%s req=%s: %v", c.ClientIP(), reqID, err)
		r.metrics.RecordRequest("", metrics.OutcomeInvalid)
		writeError(c, http.StatusBadRequest, err)
		return
	}
	logger.Errorf("[api] 请求处理失败 ip=%s req=%s: %v", c.ClientIP(), reqID, err)
	r.metrics.RecordRequest("", metrics.OutcomeInternal)
	writeError(c, http.StatusInternalServerError, err)
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, AnalyzeResponse{Status: StatusError, Message: err.Error()})
}
