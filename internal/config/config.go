package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是通用环境变量前缀，例如 FXANALYST_AUDIT_DIR。
const EnvPrefix = "FXANALYST"

// legacyEnv 保留早期版本使用的环境变量名。
var legacyEnv = map[string][]string{
	"gemini.api_key": {"GEMINI_API_KEY"},
	"gemini.model":   {"MODEL_NAME", "GEMINI_MODEL"},
	"app.port":       {"PORT"},
}

var knownKeys = []string{
	"app.env", "app.log_level", "app.http_addr", "app.port", "app.log_path",
	"app.llm_log_path", "app.llm_dump_payload",
	"gemini.api_key", "gemini.model", "gemini.base_url", "gemini.timeout_seconds",
	"prompt.directive_path", "prompt.timezone",
	"audit.dir", "audit.format", "audit.write_prompt", "audit.retention_days", "audit.prune_schedule",
}

// Loader 持有 viper 实例，支持配置文件热更新。
type Loader struct {
	path string
	v    *viper.Viper

	mu  sync.Mutex
	cfg *Config
}

// Load 读取可选的 YAML 配置文件并叠加环境变量。path 为空或文件不存在时只使用环境变量。
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Current(), nil
}

func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range knownKeys {
		names := append([]string{key}, legacyEnv[key]...)
		if len(names) > 1 {
			// 显式给出的变量名不会自动加前缀
			names = append(names, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		} else {
			path = ""
		}
	}

	l := &Loader{path: path, v: v}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return l, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(l.v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Current 返回最近一次成功解析的配置。
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Path 返回实际使用的配置文件路径；仅使用环境变量时为空。
func (l *Loader) Path() string { return l.path }

// Watch 监听配置文件变更；新配置校验失败时保留旧配置并通过 onError 上报。
func (l *Loader) Watch(onChange func(*Config), onError func(error)) bool {
	if l.path == "" {
		return false
	}
	l.v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("config reload failed (%s): %w", evt.Name, err))
			}
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
	return true
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
