package market

// Candle 是终端推送的一根 K 线；Time 为原样透传的标签，不做时间解析。
type Candle struct {
	Time  string  `json:"time" yaml:"time"`
	Open  float64 `json:"open" yaml:"open"`
	High  float64 `json:"high" yaml:"high"`
	Low   float64 `json:"low" yaml:"low"`
	Close float64 `json:"close" yaml:"close"`
}

type Candles []Candle

// Series 是单个品种在单一周期下的 K 线序列，顺序即调用方提供的时间顺序。
type Series struct {
	Symbol  string
	Period  int
	Candles Candles
}

func (s Series) Len() int { return len(s.Candles) }

func (s Series) Empty() bool { return len(s.Candles) == 0 }
