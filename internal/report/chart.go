package report

import (
	"fmt"
	"io"
	"os"

	"bhavlab/internal/market"
	"bhavlab/internal/portfolio"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	chartWidthPx  = 1280
	chartHeightPx = 420
)

// RenderHTML writes a self-contained HTML page with the equity curve and
// the drawdown profile of a finished run.
func RenderHTML(w io.Writer, title string, res *portfolio.Result) error {
	if len(res.EquityCurve) == 0 {
		return fmt.Errorf("result has no equity curve to render")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildEquityChart(title, res), buildDrawdownChart(res))
	return page.Render(w)
}

// SaveHTML renders the report to a file on disk.
func SaveHTML(path, title string, res *portfolio.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := RenderHTML(f, title, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func buildEquityChart(title string, res *portfolio.Result) *charts.Line {
	dates, values := splitCurve(res.EquityCurve)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("return %.2f%%  trades %d  win rate %.0f%%",
				res.TotalReturnPct, res.TotalTrades, res.WinRate*100),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	points := make([]opts.LineData, len(values))
	for i, v := range values {
		points[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(dates)
	line.AddSeries("equity", points,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func buildDrawdownChart(res *portfolio.Result) *charts.Line {
	dates, values := splitCurve(res.EquityCurve)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Drawdown",
			Subtitle: fmt.Sprintf("max %.2f%%", res.Metrics.MaxDrawdownPct),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	points := make([]opts.LineData, len(values))
	peak := values[0]
	for i, v := range values {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak * 100
		}
		points[i] = opts.LineData{Value: -dd}
	}
	line.SetXAxis(dates)
	line.AddSeries("drawdown %", points,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}),
	)
	return line
}

func splitCurve(curve []portfolio.EquityPoint) ([]string, []float64) {
	dates := make([]string, len(curve))
	values := make([]float64, len(curve))
	for i, p := range curve {
		dates[i] = p.Date.Format(market.DateLayout)
		values[i] = p.Value
	}
	return dates, values
}
