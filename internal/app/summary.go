package app

import (
	"fmt"
	"strings"

	"fxanalyst/internal/config"
)

type StartupSummary struct {
	HTTPAddr      string
	Model         string
	DirectivePath string
	Timezone      string
	AuditDir      string
	AuditFormat   string
	WritePrompt   bool
	RetentionDays int
	PruneSchedule string
}

func newStartupSummary(cfg *config.Config, model string) *StartupSummary {
	return &StartupSummary{
		HTTPAddr:      cfg.App.HTTPAddr,
		Model:         model,
		DirectivePath: cfg.Prompt.DirectivePath,
		Timezone:      cfg.Prompt.Timezone,
		AuditDir:      cfg.Audit.Dir,
		AuditFormat:   cfg.Audit.Format,
		WritePrompt:   cfg.Audit.WritePrompt,
		RetentionDays: cfg.Audit.RetentionDays,
		PruneSchedule: cfg.Audit.PruneSchedule,
	}
}

func (s *StartupSummary) Print() {
	fmt.Print(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	title := "启动配置摘要 (STARTUP SUMMARY)"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[服务 (SERVER)]\n")
	fmt.Fprintf(&b, "  监听地址: %s\n", s.HTTPAddr)
	fmt.Fprintf(&b, "  分析模型: %s\n", s.Model)
	b.WriteString("\n")

	b.WriteString("[提示词 (PROMPT)]\n")
	fmt.Fprintf(&b, "  策略文件: %s\n", s.DirectivePath)
	fmt.Fprintf(&b, "  时区: %s\n", orDash(s.Timezone))
	b.WriteString("\n")

	b.WriteString("[审计 (AUDIT)]\n")
	fmt.Fprintf(&b, "  目录: %s (%s)\n", s.AuditDir, s.AuditFormat)
	fmt.Fprintf(&b, "  保存 prompt: %v\n", s.WritePrompt)
	if s.RetentionDays > 0 {
		fmt.Fprintf(&b, "  保留天数: %d (%s)\n", s.RetentionDays, s.PruneSchedule)
	} else {
		b.WriteString("  保留天数: 不清理\n")
	}
	b.WriteString(strings.Repeat("=", 80) + "\n")
	return b.String()
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
