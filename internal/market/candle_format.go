package market

import (
	"strconv"
	"strings"
)

// PricePrecision 是 prompt 中 OHLC 的固定小数位。
const PricePrecision = 3

// Rows 将序列渲染为 "(time, open, high, low, close)" 行，行间以单个换行分隔。
// 空序列返回空字符串。
func (cs Candles) Rows() string {
	if len(cs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range cs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('(')
		b.WriteString(c.Time)
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close} {
			b.WriteString(", ")
			b.WriteString(formatPrice(v))
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (s Series) Rows() string { return s.Candles.Rows() }

// formatPrice 与 %.3f 一致：四舍五入而非截断。
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', PricePrecision, 64)
}
