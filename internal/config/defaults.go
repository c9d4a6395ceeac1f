package config

import (
	"strconv"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":3000"
	defaultGeminiModel     = "gemini-3-flash-preview"
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com"
	defaultGeminiTimeout   = 120
	defaultDirectivePath   = "strategy.txt"
	defaultAuditDir        = "logs"
	defaultAuditFormat     = "json"
	defaultAuditPruneSched = "@daily"
)

// applyDefaults 为所有子配置应用默认值；显式出现在配置源中的键保持原值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Gemini.applyDefaults(keys)
	c.Prompt.applyDefaults(keys)
	c.Audit.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		// PORT 仅在未显式配置 http_addr 时生效
		fieldDefault{
			key:  "app.http_addr",
			need: func() bool { return strings.TrimSpace(a.HTTPAddr) == "" },
			apply: func() {
				if a.Port > 0 {
					a.HTTPAddr = ":" + strconv.Itoa(a.Port)
					return
				}
				a.HTTPAddr = defaultAppHTTPAddr
			},
		},
	)
}

func (g *GeminiConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	g.APIKey = strings.TrimSpace(g.APIKey)
	applyFieldDefaults(keys,
		stringFieldDefault("", &g.Model, defaultGeminiModel),
		stringFieldDefault("gemini.base_url", &g.BaseURL, defaultGeminiBaseURL),
		fieldDefault{
			key:   "gemini.timeout_seconds",
			need:  func() bool { return g.TimeoutSeconds <= 0 },
			apply: func() { g.TimeoutSeconds = defaultGeminiTimeout },
		},
	)
}

func (p *PromptConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("prompt.directive_path", &p.DirectivePath, defaultDirectivePath),
	)
}

func (a *AuditConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	a.Format = strings.ToLower(strings.TrimSpace(a.Format))
	applyFieldDefaults(keys,
		stringFieldDefault("", &a.Dir, defaultAuditDir),
		stringFieldDefault("", &a.Format, defaultAuditFormat),
		stringFieldDefault("", &a.PruneSchedule, defaultAuditPruneSched),
	)
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
