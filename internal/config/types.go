package config

import (
	"strings"
	"time"
)

// Config 是服务的主配置载体，进程启动后只读。
type Config struct {
	App    AppConfig    `toml:"app"`
	Gemini GeminiConfig `toml:"gemini"`
	Prompt PromptConfig `toml:"prompt"`
	Audit  AuditConfig  `toml:"audit"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	Port     int    `toml:"port"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// GeminiConfig 描述补全服务的访问方式；APIKey 缺失时拒绝启动。
type GeminiConfig struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type PromptConfig struct {
	DirectivePath string `toml:"directive_path"`
	Timezone      string `toml:"timezone"`
}

// Location 解析 prompt 中使用的时区；空值表示本地时区。
func (p PromptConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(p.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

type AuditConfig struct {
	Dir           string `toml:"dir"`
	Format        string `toml:"format"`
	WritePrompt   bool   `toml:"write_prompt"`
	RetentionDays int    `toml:"retention_days"`
	PruneSchedule string `toml:"prune_schedule"`
}

func (a AuditConfig) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}
