package jsonutil

import (
	"bytes"
	"encoding/json"
)

// Pretty 以两空格缩进重排 JSON 文本，用于日志展示；非 JSON 内容原样返回。
func Pretty(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return string(raw)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
