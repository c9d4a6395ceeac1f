// Package analysis 定义终端推送的分析请求聚合体及其解码/校验流程。
//
// 请求格式随终端 EA 版本演进：v1 只有 symbol + candles，后续版本加入中/低周期与相关品种。
// 所有可选字段都在 Decode 中显式补默认值，下游的格式化与 prompt 编译不感知具体版本。
package analysis

import (
	"strings"

	"fxanalyst/internal/market"
)

// CurrentVersion 是未声明 version 时采用的版本号。
const CurrentVersion = 1

// Request 是一次 /analyze 调用的完整聚合体。
type Request struct {
	Version int    `json:"version" yaml:"version" default:"1"`
	Symbol  string `json:"symbol" yaml:"symbol" validate:"required"`

	// 高周期（环境认识），v1 字段
	Period  int            `json:"period" yaml:"period"`
	Candles market.Candles `json:"candles" yaml:"candles" default:"[]"`

	// 中周期（详细）
	MidPeriod  int            `json:"mid_period" yaml:"mid_period"`
	MidCandles market.Candles `json:"mid_candles" yaml:"mid_candles" default:"[]"`

	// 低周期（入场时机）
	LowPeriod  int            `json:"low_period" yaml:"low_period"`
	LowCandles market.Candles `json:"low_candles" yaml:"low_candles" default:"[]"`

	Correlation *Correlation `json:"correlation,omitempty" yaml:"correlation,omitempty"`
}

// Correlation 是可选的相关品种快照（最多两个周期）。
type Correlation struct {
	Symbol     string         `json:"symbol" yaml:"symbol"`
	Period     int            `json:"period" yaml:"period"`
	Candles    market.Candles `json:"candles" yaml:"candles" default:"[]"`
	LowPeriod  int            `json:"low_period" yaml:"low_period"`
	LowCandles market.Candles `json:"low_candles" yaml:"low_candles" default:"[]"`
}

// Timeframe 标识主品种的三个固定周期槽位。
type Timeframe int

const (
	TimeframeHigh Timeframe = iota
	TimeframeMid
	TimeframeLow
)

// PrimarySeries 按 高/中/低 固定顺序返回主品种序列；缺省周期为空序列。
func (r *Request) PrimarySeries() [3]market.Series {
	return [3]market.Series{
		TimeframeHigh: {Symbol: r.Symbol, Period: r.Period, Candles: r.Candles},
		TimeframeMid:  {Symbol: r.Symbol, Period: r.MidPeriod, Candles: r.MidCandles},
		TimeframeLow:  {Symbol: r.Symbol, Period: r.LowPeriod, Candles: r.LowCandles},
	}
}

// CorrelationSymbol 返回相关品种代码；未提供时为空串。
func (r *Request) CorrelationSymbol() string {
	if r == nil || r.Correlation == nil {
		return ""
	}
	return strings.TrimSpace(r.Correlation.Symbol)
}

// CorrelationSeries 返回相关品种的 高/低 两个序列；ok=false 表示请求未携带相关品种。
func (r *Request) CorrelationSeries() (series [2]market.Series, ok bool) {
	sym := r.CorrelationSymbol()
	if sym == "" {
		return series, false
	}
	c := r.Correlation
	series[0] = market.Series{Symbol: sym, Period: c.Period, Candles: c.Candles}
	series[1] = market.Series{Symbol: sym, Period: c.LowPeriod, Candles: c.LowCandles}
	return series, true
}
