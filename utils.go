package stylegan

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Returns reference to tensor.Dense of the provided shape filled with
// normally distributed float64 values (mean = 0, stddev = 1) drawn from the provided
// generator.
func NormRandDense(rng *rand.Rand, dims ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(dims).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
}

// GlorotNormDense Returns reference to tensor.Dense of the provided shape filled with
// draws from the Glorot (Xavier) normal distribution: stddev = gain * sqrt(2 / (fanIn + fanOut)).
// Supported shapes are (out, in) for linear weights and (out, in, kernelHeight, kernelWidth)
// for convolutional kernels.
func GlorotNormDense(rng *rand.Rand, gain float64, dims ...int) (*tensor.Dense, error) {
	var fanIn, fanOut float64
	switch len(dims) {
	case 2:
		fanOut, fanIn = float64(dims[0]), float64(dims[1])
	case 4:
		receptive := float64(dims[2] * dims[3])
		fanOut = float64(dims[0]) * receptive
		fanIn = float64(dims[1]) * receptive
	default:
		return nil, fmt.Errorf("Weights must have 2 or 4 dimensions, but got %d", len(dims))
	}
	stddev := gain * math.Sqrt(2.0/(fanIn+fanOut))
	data := make([]float64, tensor.Shape(dims).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64() * stddev
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}

// SlicerOneStep Just iterator with step size = 1
type SlicerOneStep struct {
	StartIdx, EndIdx int
}

func (s SlicerOneStep) Start() int { return s.StartIdx }
func (s SlicerOneStep) End() int   { return s.EndIdx }
func (s SlicerOneStep) Step() int  { return 1 }

// PlotLossCurve Plots per-epoch loss values as a line chart
func PlotLossCurve(losses []float64, fname string) error {
	if len(losses) == 0 {
		return fmt.Errorf("Loss history must have one value atleast")
	}
	lineData := make(plotter.XYs, len(losses))
	for i := range losses {
		lineData[i].X = float64(i + 1)
		lineData[i].Y = losses[i]
	}
	line, err := plotter.NewLine(lineData)
	if err != nil {
		return errors.Wrap(err, "Can't init new line")
	}
	line.Color = color.RGBA{R: 255, B: 128, A: 255}
	p := plot.New()
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(line)
	// Save the plot to a PNG file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// OneHotEncode Maps a slice of labels to one-hot rows. Classes are the unique
// labels in lexicographic order.
func OneHotEncode(sl []string) ([][]int, error) {
	result := [][]int{}
	unique := make(map[string]bool)
	for _, s := range sl {
		unique[s] = true
	}
	uniqueSlice := make([]string, 0, len(unique))
	for k := range unique {
		uniqueSlice = append(uniqueSlice, k)
	}
	sort.Strings(uniqueSlice)
	maxIdx := len(uniqueSlice)
	for i := range sl {
		oneHotEncodedResult := make([]int, maxIdx)
		oneHotIdx := findIdxStrings(sl[i], uniqueSlice)
		if oneHotIdx == -1 {
			return nil, fmt.Errorf("Index went to -1. This should not happen at all")
		}
		oneHotEncodedResult[oneHotIdx] = 1
		result = append(result, oneHotEncodedResult)
	}
	return result, nil
}

func findIdxStrings(s string, slice []string) int {
	for i, item := range slice {
		if item == s {
			return i
		}
	}
	return -1
}
