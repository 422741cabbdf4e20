package query

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
)

const nullFormatted = "∅"

var intervalLayouts = map[domain.TimeFrame]string{
	domain.TimeFrameMinute: "2006-01-02 15:04",
	domain.TimeFrameHour:   "2006-01-02 15",
	domain.TimeFrameDay:    "2006-01-02",
	domain.TimeFrameWeek:   "2006-01-02",
	domain.TimeFrameMonth:  "2006-01",
	domain.TimeFrameYear:   "2006",
	domain.TimeFrameRaw:    "2006-01-02 15:04:05",
}

// FormatValue renders a raw warehouse value for display. f may be nil for table calculations.
func FormatValue(f domain.Field, v any) string {
	if v == nil {
		return nullFormatted
	}
	var (
		format string
		round  *int
	)
	switch x := f.(type) {
	case domain.Dimension:
		if t, ok := v.(time.Time); ok {
			return formatTime(x, t)
		}
		format, round = x.Format, x.Round
	case domain.Metric:
		format, round = x.Format, x.Round
	}

	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05")
	case string:
		return x
	case []byte:
		return string(x)
	}
	n, ok := toFloat(v)
	if !ok {
		return fmt.Sprint(v)
	}
	return formatNumber(n, format, round)
}

func formatTime(d domain.Dimension, t time.Time) string {
	t = t.UTC()
	if d.TimeInterval == domain.TimeFrameQuarter {
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	}
	if layout := intervalLayouts[d.TimeInterval]; layout != "" {
		return t.Format(layout)
	}
	if d.Type == domain.DimensionTypeDate {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatNumber(n float64, format string, round *int) string {
	prec := -1
	if round != nil && *round >= 0 {
		prec = *round
	}
	switch strings.ToLower(format) {
	case "percent":
		if prec < 0 {
			prec = 0
		}
		return strconv.FormatFloat(n*100, 'f', prec, 64) + "%"
	case "usd":
		return "$" + formatMoney(n, prec)
	case "gbp":
		return "£" + formatMoney(n, prec)
	case "eur":
		return "€" + formatMoney(n, prec)
	}
	if prec < 0 && n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', prec, 64)
}

func formatMoney(n float64, prec int) string {
	if prec < 0 {
		prec = 2
	}
	return strconv.FormatFloat(n, 'f', prec, 64)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	case interface{ Float64() float64 }:
		return x.Float64(), true
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
