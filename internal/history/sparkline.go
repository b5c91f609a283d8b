package history

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

const (
	sparkWidth  = 60
	sparkHeight = 20
	sparkUp     = "#22c55e"
	sparkDown   = "#DC2626"
)

// Sparkline renders series as a 60x20 inline SVG polyline. It returns "" when
// fewer than two samples are available.
func Sparkline(series []domain.PriceSample) string {
	if len(series) < 2 {
		return ""
	}
	lo, hi := series[0].P, series[0].P
	for _, s := range series[1:] {
		lo = min(lo, s.P)
		hi = max(hi, s.P)
	}
	span := float64(hi - lo)
	if span == 0 {
		span = 1
	}

	last := len(series) - 1
	points := make([]string, len(series))
	for i, s := range series {
		x := float64(i) / float64(last) * sparkWidth
		y := sparkHeight - float64(s.P-lo)/span*sparkHeight
		points[i] = fixed1(x) + "," + fixed1(y)
	}

	color := sparkUp
	if series[last].P < series[0].P {
		color = sparkDown
	}
	return fmt.Sprintf(
		`<svg width="%d" height="%d" viewBox="0 0 %d %d" style="vertical-align:middle">`+
			`<polyline points="%s" fill="none" stroke="%s" stroke-width="1.5" stroke-linecap="round" stroke-linejoin="round"/></svg>`,
		sparkWidth, sparkHeight, sparkWidth, sparkHeight, strings.Join(points, " "), color,
	)
}

func fixed1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
