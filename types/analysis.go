package types

import (
	"os"
	"path"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is a named series of points
type Curve struct {
	Name   string
	Points plotter.XYs
}

// EpisodeRewardCurve turns the traces into a (episode, total reward) curve
func EpisodeRewardCurve(name string, traces []*Trace) Curve {
	points := make(plotter.XYs, len(traces))
	for i, t := range traces {
		points[i] = plotter.XY{
			X: float64(i),
			Y: t.TotalReward(),
		}
	}
	return Curve{Name: name, Points: points}
}

// PlotCurves saves the curves as lines of a single PNG figure
func PlotCurves(plotPath, title, xLabel, yLabel string, curves ...Curve) error {
	if dir := path.Dir(plotPath); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			os.MkdirAll(dir, os.ModePerm)
		}
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	for i, c := range curves {
		if len(c.Points) == 0 {
			continue
		}
		line, err := plotter.NewLine(c.Points)
		if err != nil {
			continue
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(c.Name, line)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, plotPath); err != nil {
		return errors.Wrapf(err, "saving plot %s", plotPath)
	}
	return nil
}
