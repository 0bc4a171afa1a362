package explain

import (
	"image/color"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

const defaultMaxDisplay = 20

// top returns the column indices of the maxDisplay most important features,
// least important first so the most important is drawn at the top.
func (ex *Explanation) top(maxDisplay int) []int {
	if maxDisplay <= 0 {
		maxDisplay = defaultMaxDisplay
	}
	rank := ex.Ranking()
	if maxDisplay > len(rank) {
		maxDisplay = len(rank)
	}
	pos := make(map[string]int, len(ex.Features))
	for j, f := range ex.Features {
		pos[f] = j
	}
	out := make([]int, maxDisplay)
	for i := 0; i < maxDisplay; i++ {
		out[maxDisplay-1-i] = pos[rank[i].Feature]
	}
	return out
}

// BarPlot draws the global importance chart: mean |SHAP| per feature.
func (ex *Explanation) BarPlot(maxDisplay int) (*plot.Plot, error) {
	cols := ex.top(maxDisplay)
	meanAbs := ex.MeanAbs()

	values := make(plotter.Values, len(cols))
	names := make([]string, len(cols))
	for i, j := range cols {
		values[i] = meanAbs[j]
		names[i] = ex.Features[j]
	}

	p := plot.New()
	p.Title.Text = "Feature importance (attrition class)"
	p.X.Label.Text = "mean(|SHAP value|)"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 0, G: 139, B: 251, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

// SummaryPlot draws one dot per row and feature at its SHAP value, coloured
// from blue (low feature value) to red (high feature value).
func (ex *Explanation) SummaryPlot(maxDisplay int) (*plot.Plot, error) {
	cols := ex.top(maxDisplay)
	n, _ := ex.Values.Dims()
	r := rand.New(rand.NewPCG(42, 42))

	p := plot.New()
	p.Title.Text = "SHAP summary (attrition class)"
	p.X.Label.Text = "SHAP value (impact on attrition probability)"

	names := make([]string, len(cols))
	for row, j := range cols {
		names[row] = ex.Features[j]
		lo, hi := columnRange(ex.Data, j)

		pts := make(plotter.XYs, n)
		colours := make([]color.Color, n)
		for i := 0; i < n; i++ {
			pts[i].X = ex.Values.At(i, j)
			pts[i].Y = float64(row) + (r.Float64()-0.5)*0.4
			colours[i] = valueColour(ex.Data.At(i, j), lo, hi)
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, errors.Wrap(err, "scatter")
		}
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{Color: colours[i], Radius: vg.Points(1.8), Shape: draw.CircleGlyph{}}
		}
		p.Add(sc)
	}
	p.Add(plotter.NewGrid())
	p.NominalY(names...)
	return p, nil
}

func columnRange(m *mat.Dense, j int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		v := m.At(i, j)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func valueColour(v, lo, hi float64) color.Color {
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	return color.RGBA{
		R: uint8(255 * t),
		G: uint8(40),
		B: uint8(255 * (1 - t)),
		A: 255,
	}
}

// SavePlots renders the bar and summary plots. The format follows each file extension.
func (ex *Explanation) SavePlots(barPath, summaryPath string, maxDisplay int) error {
	cols := ex.top(maxDisplay)
	height := vg.Length(len(cols))*0.3*vg.Inch + 1.5*vg.Inch

	bar, err := ex.BarPlot(maxDisplay)
	if err != nil {
		return err
	}
	if err := bar.Save(8*vg.Inch, height, barPath); err != nil {
		return errors.Wrapf(err, "save %s", barPath)
	}

	summary, err := ex.SummaryPlot(maxDisplay)
	if err != nil {
		return err
	}
	if err := summary.Save(8*vg.Inch, height, summaryPath); err != nil {
		return errors.Wrapf(err, "save %s", summaryPath)
	}
	return nil
}
