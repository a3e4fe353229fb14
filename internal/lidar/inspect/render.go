package inspect

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// maxChartPoints bounds the number of points sent to the browser.
const maxChartPoints = 20000

// stride returns the step that keeps at most limit of n points.
func stride(n, limit int) int {
	if n <= limit {
		return 1
	}
	return (n + limit - 1) / limit
}

// RenderPNG writes a top-down (X/Y) scatter of the sample to path.
func RenderPNG(s *Sample, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d rings × %d points", s.Channels, s.PointsPerChannel)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	xys := make(plotter.XYs, 0, len(s.Records))
	for _, r := range s.Records {
		xys = append(xys, plotter.XY{X: float64(r.X), Y: float64(r.Y)})
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(0.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 104, B: 142, A: 255}
	p.Add(scatter)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// RenderHTML writes an interactive echarts scatter coloured by ring.
func RenderHTML(w io.Writer, s *Sample, title string) error {
	step := stride(len(s.Records), maxChartPoints)
	data := make([]opts.ScatterData, 0, len(s.Records)/step+1)
	pad := 1.0
	for i := 0; i < len(s.Records); i += step {
		r := s.Records[i]
		data = append(data, opts.ScatterData{Value: []interface{}{r.X, r.Y, r.Ring}})
		pad = math.Max(pad, math.Max(math.Abs(float64(r.X)), math.Abs(float64(r.Y))))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("rings=%d points=%d stride=%d", s.Channels, len(data), step)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			Min:        0,
			Max:        float32(max(s.Channels-1, 1)),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	return scatter.Render(w)
}
