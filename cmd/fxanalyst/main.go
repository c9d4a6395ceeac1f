package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"fxanalyst/internal/app"
	"fxanalyst/internal/config"
	"fxanalyst/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("FXANALYST_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	loader, err := config.NewLoader(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	cfg := loader.Current()
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLLMWriter(nil)
	f, err := setupLLMLogOutput(cfg.App.LLMLog)
	if err != nil {
		log.Fatalf("初始化 LLM 日志失败: %v", err)
	}
	if f != nil {
		defer f.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.EnableLLMPayloadDump(cfg.App.LLMDump)
	source := loader.Path()
	if source == "" {
		source = "env"
	}
	logger.Infof("✓ 配置加载成功（环境=%s，来源=%s，模型=%s）", cfg.App.Env, source, cfg.Gemini.Model)

	// 其余配置项在启动时固化，热更新只调整日志相关开关
	loader.Watch(func(next *config.Config) {
		logger.SetLevel(next.App.LogLevel)
		logger.EnableLLMPayloadDump(next.App.LLMDump)
		logger.Infof("配置已重新加载：log_level=%s llm_dump_payload=%v", next.App.LogLevel, next.App.LLMDump)
	}, func(err error) {
		logger.Warnf("%v", err)
	})

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := application.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("已退出")
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupLLMLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetLLMWriter(f)
	return f, nil
}
