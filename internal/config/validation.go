package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ErrMissingAPIKey 表示未提供 GEMINI_API_KEY，进程不得开始接收流量。
var ErrMissingAPIKey = errors.New("gemini.api_key (GEMINI_API_KEY) must be set")

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Gemini.validate(); err != nil {
		return err
	}
	if err := c.Prompt.validate(); err != nil {
		return err
	}
	if err := c.Audit.validate(); err != nil {
		return err
	}
	return nil
}

func (g *GeminiConfig) validate() error {
	if strings.TrimSpace(g.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(g.Model) == "" {
		return fmt.Errorf("gemini.model cannot be empty")
	}
	if !strings.HasPrefix(g.BaseURL, "http://") && !strings.HasPrefix(g.BaseURL, "https://") {
		return fmt.Errorf("gemini.base_url must be an http(s) URL: %q", g.BaseURL)
	}
	return nil
}

func (p *PromptConfig) validate() error {
	if _, err := p.Location(); err != nil {
		return fmt.Errorf("prompt.timezone invalid: %w", err)
	}
	return nil
}

func (a *AuditConfig) validate() error {
	switch a.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("audit.format must be json or yaml, got %q", a.Format)
	}
	if a.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must be >= 0")
	}
	if a.RetentionDays > 0 {
		if _, err := cron.ParseStandard(a.PruneSchedule); err != nil {
			return fmt.Errorf("audit.prune_schedule invalid: %w", err)
		}
	}
	return nil
}
