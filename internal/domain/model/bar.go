package model

// Bar is one OHLC candle. Time is epoch seconds (start of the bucket).
type Bar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// HistoryMeta accompanies a history delivery.
// NoData tells the host there is nothing in the requested period so it stops paging back.
type HistoryMeta struct {
	NoData bool `json:"noData"`
}

// Trade is a single print coming from the live stream.
type Trade struct {
	Exchange string  `json:"exchange"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`
	Time     int64   `json:"time"` // unix seconds
}

// ApplyTrade folds a trade into the running bar of resolution res.
// last may be nil when no baseline exists. Buckets are compared after
// alignment, so a baseline stamped inside its bucket is still continued. The returned bool is false when the
// trade is older than the baseline and was dropped.
func ApplyTrade(last *Bar, t Trade, res Resolution) (Bar, bool) {
	bucket := res.Align(t.Time)
	if last == nil || bucket > res.Align(last.Time) {
		return Bar{
			Time:  bucket,
			Open:  t.Price,
			High:  t.Price,
			Low:   t.Price,
			Close: t.Price,
		}, true
	}
	if bucket < res.Align(last.Time) {
		return *last, false
	}

	b := *last
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	return b, true
}
