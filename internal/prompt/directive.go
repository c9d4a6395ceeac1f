package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultDirective 在策略文件不可用时替代使用。
const DefaultDirective = `【評価軸】
1. トレンド方向 (上昇/下降/レンジ) とその強さ
2. 直近の注目すべきプライスアクション
3. 短期的な売買バイアス（強気/弱気/中立）
簡潔に箇条書きで出力してください。`

var ErrEmptyDirective = errors.New("strategy directive is empty")

// DirectiveSource 提供追加在 prompt 末尾的策略指令。
type DirectiveSource interface {
	Load() (string, error)
}

// FileDirective 每次调用都重新读取文件，修改后无需重启即可生效。
type FileDirective struct {
	Path string
}

func (f FileDirective) Load() (string, error) {
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return "", fmt.Errorf("strategy directive path not configured")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read strategy directive %s: %w", path, err)
	}
	// 内容原样返回，只有零字节文件视为缺失
	if len(b) == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyDirective)
	}
	return string(b), nil
}

// StaticDirective 用于测试或内嵌指令。
type StaticDirective string

func (s StaticDirective) Load() (string, error) {
	if s == "" {
		return "", ErrEmptyDirective
	}
	return string(s), nil
}
