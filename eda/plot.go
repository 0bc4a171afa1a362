package eda

import (
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

func (s *Summary) countPlot(path string) error {
	labels := sortedKeys(s.Attrition)
	values := make(plotter.Values, len(labels))
	for i, l := range labels {
		values[i] = float64(s.Attrition[l])
	}

	p := plot.New()
	p.Title.Text = "Employee Attrition Distribution"
	p.X.Label.Text = "Attrition"
	p.Y.Label.Text = "count"

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return errors.Wrap(err, "count plot")
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(labels...)
	return save(p, path)
}

func (s *Summary) boxPlot(col, path string) error {
	groups := s.Groups[col]
	labels := sortedKeys(groups)

	p := plot.New()
	p.Title.Text = col + " vs Attrition"
	p.X.Label.Text = "Attrition"
	p.Y.Label.Text = col

	for i, l := range labels {
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), plotter.Values(groups[l].values))
		if err != nil {
			return errors.Wrapf(err, "box plot %s", col)
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(labels...)
	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
