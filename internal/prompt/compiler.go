// Package prompt 将分析请求编译为发送给模型的单一文本。
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fxanalyst/internal/analysis"
	"fxanalyst/internal/logger"
	"fxanalyst/internal/market"
)

// TimeLayout 是 prompt 中当前时刻的渲染格式。
const TimeLayout = "2006年01月02日 15:04:05"

const columnHeader = "(Time, Open, High, Low, Close)"

// 主品种三个周期的小节标题，顺序固定。
var primaryHeadings = [3]string{
	analysis.TimeframeHigh: "【環境認識】上位足",
	analysis.TimeframeMid:  "【詳細】中位足",
	analysis.TimeframeLow:  "【エントリータイミング】下位足",
}

var correlationHeadings = [2]string{
	"【環境認識】上位足",
	"【エントリータイミング】下位足",
}

// Compiler 组装 prompt；除 now 以外的输入相同则输出逐字节一致。
type Compiler struct {
	Directive DirectiveSource
	Location  *time.Location
}

func NewCompiler(src DirectiveSource, loc *time.Location) *Compiler {
	return &Compiler{Directive: src, Location: loc}
}

// Compile 按固定小节顺序渲染 prompt。now 由调用方在请求开始时取一次。
func (c *Compiler) Compile(req *analysis.Request, now time.Time) (string, error) {
	if req == nil {
		return "", errors.New("prompt: nil request")
	}
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return "", errors.New("prompt: request without symbol")
	}
	loc := time.Local
	if c != nil && c.Location != nil {
		loc = c.Location
	}

	var b strings.Builder
	b.WriteString("あなたはプロのFXトレーダーです。以下のマルチタイムフレームの市場データに基づいて現状を分析してください。\n")
	fmt.Fprintf(&b, "対象通貨: %s\n", symbol)
	fmt.Fprintf(&b, "現在時刻: %s\n", now.In(loc).Format(TimeLayout))
	b.WriteString("データ形式: 各行 " + columnHeader + "、送信順に並んでいます。\n\n")

	fmt.Fprintf(&b, "■ 分析対象: %s\n", symbol)
	primary := req.PrimarySeries()
	for i, s := range primary {
		writeSeries(&b, primaryHeadings[i], s)
	}

	if corr, ok := req.CorrelationSeries(); ok {
		fmt.Fprintf(&b, "■ 相関参考: %s（%s の判断材料として参照）\n", corr[0].Symbol, symbol)
		for i, s := range corr {
			writeSeries(&b, correlationHeadings[i], s)
		}
	}

	b.WriteString("【分析指示】\n")
	directive := c.directive()
	b.WriteString(directive)
	if !strings.HasSuffix(directive, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// writeSeries 写出一个周期小节；空序列保留标题与列头，正文为空。
func writeSeries(b *strings.Builder, heading string, s market.Series) {
	fmt.Fprintf(b, "%s (Period: %d)\n", heading, s.Period)
	b.WriteString(columnHeader)
	b.WriteString("\n")
	if rows := s.Rows(); rows != "" {
		b.WriteString(rows)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (c *Compiler) directive() string {
	if c == nil || c.Directive == nil {
		logger.Warn("strategy directive unavailable, using fallback", "reason", "no directive source configured")
		return DefaultDirective
	}
	text, err := c.Directive.Load()
	if err != nil {
		logger.Warn("strategy directive unavailable, using fallback", "error", err.Error())
		return DefaultDirective
	}
	return text
}
