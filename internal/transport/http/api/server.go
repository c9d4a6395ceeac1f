package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fxanalyst/internal/logger"
	"fxanalyst/internal/metrics"

	"github.com/gin-gonic/gin"
)

const (
	defaultAddr            = ":3000"
	defaultShutdownTimeout = 5 * time.Second
)

// Server 对外提供 /analyze 以及健康检查、指标接口。
type Server struct {
	addr            string
	router          *gin.Engine
	shutdownTimeout time.Duration
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr     string
	Analyzer Analyzer
	Metrics  *metrics.Recorder
	// MaxBodyBytes 限制请求体大小，<=0 使用默认值。
	MaxBodyBytes int64
	// ShutdownTimeout 是退出时等待进行中请求的上限，应不小于补全调用超时。
	ShutdownTimeout time.Duration
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("http server requires an analyzer")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	NewRouter(cfg.Analyzer, cfg.Metrics, cfg.MaxBodyBytes).Register(&router.RouterGroup)

	return &Server{addr: cfg.Addr, router: router, shutdownTimeout: cfg.ShutdownTimeout}, nil
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// ShutdownTimeout 返回退出时等待进行中请求的上限。
func (s *Server) ShutdownTimeout() time.Duration {
	return s.shutdownTimeout
}

// Handler 暴露底层路由，便于测试直接驱动。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP 服务监听 %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warnf("HTTP 服务关闭超时 (%s)，仍有请求未完成: %v", s.shutdownTimeout, err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
