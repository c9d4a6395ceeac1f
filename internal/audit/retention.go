package audit

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"fxanalyst/internal/logger"
)

// Prune 删除修改时间早于 now-olderThan 的审计文件，返回删除数量。
// 只处理本包写出的后缀，目录中的其它文件保持不动。
func (s *Store) Prune(olderThan time.Duration) int {
	if s == nil || olderThan <= 0 || strings.TrimSpace(s.Dir) == "" {
		return 0
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("audit prune: read dir failed", "dir", s.Dir, "error", err.Error())
		}
		return 0
	}
	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isAuditFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.Dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("audit prune: remove failed", "path", path, "error", err.Error())
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Infof("[audit] 已清理 %d 个过期审计文件 (dir=%s)", removed, s.Dir)
	}
	return removed
}

func isAuditFile(name string) bool {
	for _, suffix := range []string{"." + FormatJSON, "." + FormatYAML, "_prompt.txt"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
