package app

import (
	"context"
	"fmt"

	"fxanalyst/internal/analyzer"
	"fxanalyst/internal/config"
	"fxanalyst/internal/logger"
	"fxanalyst/internal/scheduler"
	apihttp "fxanalyst/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：配置→依赖初始化→启动 HTTP 服务与后台任务。
type App struct {
	cfg     *config.Config
	service *analyzer.Service
	http    *apihttp.Server
	sched   *scheduler.Scheduler
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与清理任务，直到 ctx 取消或任一组件出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	if a.sched.Len() > 0 {
		group.Go(func() error {
			return a.sched.Run(ctx)
		})
	}

	err := group.Wait()
	// 已受理请求的审计写入需要落盘后再退出
	a.service.Close()
	return err
}

// Service 暴露分析服务（测试与嵌入使用）。
func (a *App) Service() *analyzer.Service {
	if a == nil {
		return nil
	}
	return a.service
}
