package main

import (
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// positionBins is the number of histogram bins over [0, 1].
const positionBins = 20

// plotPositions writes a PNG histogram of relative frame positions.
func plotPositions(path, title string, positions []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "relative position in video"
	p.Y.Label.Text = "frames drawn"

	if len(positions) > 0 {
		h, err := plotter.NewHist(plotter.Values(positions), positionBins)
		if err != nil {
			return err
		}
		h.FillColor = color.RGBA{R: 20, G: 80, B: 200, A: 200}
		h.LineStyle.Color = color.RGBA{R: 10, G: 40, B: 100, A: 255}
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
	}
	p.Add(plotter.NewGrid())
	p.X.Min = 0
	p.X.Max = 1

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
