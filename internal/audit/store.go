// Package audit 将每次入站请求写入带时间戳的平面文件，仅用于诊断。
//
// 写入是尽力而为的：目录创建或写文件失败只记录 WARN 日志，绝不影响主请求。
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fxanalyst/internal/analysis"
	"fxanalyst/internal/logger"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"

	// TimestampLayout 精确到秒；同品种同一秒的请求会覆盖前一份。
	TimestampLayout = "20060102_150405"
)

// Store 是基于目录的审计日志。
type Store struct {
	Dir         string
	Format      string
	WritePrompt bool
	Now         func() time.Time
}

func NewStore(dir, format string, writePrompt bool) *Store {
	return &Store{Dir: dir, Format: format, WritePrompt: writePrompt, Now: time.Now}
}

// Entry 是一次写入的文件名集合，便于调用方在日志中引用。
type Entry struct {
	RequestPath string
	PromptPath  string
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) format() string {
	if strings.EqualFold(strings.TrimSpace(s.Format), FormatYAML) {
		return FormatYAML
	}
	return FormatJSON
}

// Stamp 返回本次写入使用的文件名前缀 "{SYMBOL}_{YYYYMMDD_HHMMSS}"。
func (s *Store) Stamp(symbol string, at time.Time) string {
	return sanitizeSymbol(symbol) + "_" + at.Format(TimestampLayout)
}

// RecordRequest 写入完整的入站聚合体。失败只打 WARN 日志。
func (s *Store) RecordRequest(req *analysis.Request, at time.Time) Entry {
	if s == nil || req == nil {
		return Entry{}
	}
	data, err := s.encode(req)
	if err != nil {
		logger.Warn("audit encode failed", "symbol", req.Symbol, "error", err.Error())
		return Entry{}
	}
	path := filepath.Join(s.Dir, s.Stamp(req.Symbol, at)+"."+s.format())
	if err := s.write(path, data); err != nil {
		logger.Warn("audit write failed", "path", path, "error", err.Error())
		return Entry{}
	}
	logger.Debugf("[audit] 已记录请求 %s", path)
	return Entry{RequestPath: path}
}

// RecordPrompt 在开启 WritePrompt 时写入编译后的 prompt 副本。
func (s *Store) RecordPrompt(symbol, prompt string, at time.Time) string {
	if s == nil || !s.WritePrompt {
		return ""
	}
	path := filepath.Join(s.Dir, s.Stamp(symbol, at)+"_prompt.txt")
	if err := s.write(path, []byte(prompt)); err != nil {
		logger.Warn("audit prompt write failed", "path", path, "error", err.Error())
		return ""
	}
	return path
}

func (s *Store) encode(req *analysis.Request) ([]byte, error) {
	if s.format() == FormatYAML {
		return yaml.Marshal(req)
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *Store) write(path string, data []byte) error {
	dir := strings.TrimSpace(s.Dir)
	if dir == "" {
		return fmt.Errorf("audit dir not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// sanitizeSymbol 去掉文件名中不安全的字符（如 "EUR/USD"、"US30.cash"）。
func sanitizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	var b strings.Builder
	for _, r := range symbol {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '#':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "UNKNOWN"
	}
	return out
}
