package stylegan

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// StyleSet Training corpus for the discriminator.
//
// Images - (DataLength, 3, 256, 256) tensor of images
// Styles - (DataLength, styleClasses) one-hot rows with the style class of each image
// Realness - (DataLength, 1) column holding 1.0 for real images and 0.0 for fake ones
type StyleSet struct {
	Images     *tensor.Dense
	Styles     *tensor.Dense
	Realness   *tensor.Dense
	DataLength int
}

// GenerateStyleSet Synthesizes a toy corpus for demos and tests. Every even
// sample is a "real" image whose per-channel intensity plateau encodes its
// style class (plus mild noise), every odd sample is a pure-noise "fake" one.
// Style classes are assigned round-robin.
func GenerateStyleSet(numSamples, styleClasses int, rng *rand.Rand) (*StyleSet, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("Number of samples must be >= 1, but got %d", numSamples)
	}
	if styleClasses < 1 {
		return nil, fmt.Errorf("Number of style classes must be >= 1, but got %d", styleClasses)
	}
	imageSize := InputChannels * InputHeight * InputWidth
	images := make([]float64, numSamples*imageSize)
	styles := make([]float64, numSamples*styleClasses)
	realness := make([]float64, numSamples)
	for s := 0; s < numSamples; s++ {
		class := s % styleClasses
		styles[s*styleClasses+class] = 1.0
		base := s * imageSize
		if s%2 == 0 {
			realness[s] = 1.0
			for c := 0; c < InputChannels; c++ {
				level := float64(class+1) / float64(styleClasses+1) * float64(c+1) / float64(InputChannels)
				offset := base + c*InputHeight*InputWidth
				for p := 0; p < InputHeight*InputWidth; p++ {
					images[offset+p] = level + 0.05*rng.NormFloat64()
				}
			}
		} else {
			for p := 0; p < imageSize; p++ {
				images[base+p] = rng.NormFloat64()
			}
		}
	}
	return &StyleSet{
		Images:     tensor.New(tensor.WithShape(numSamples, InputChannels, InputHeight, InputWidth), tensor.WithBacking(images)),
		Styles:     tensor.New(tensor.WithShape(numSamples, styleClasses), tensor.WithBacking(styles)),
		Realness:   tensor.New(tensor.WithShape(numSamples, 1), tensor.WithBacking(realness)),
		DataLength: numSamples,
	}, nil
}

// Batch Returns views over the half-open sample range [start; start+batchSize)
// in images-styles-realness order.
func (set *StyleSet) Batch(start, batchSize int) (*tensor.Dense, *tensor.Dense, *tensor.Dense, error) {
	if start < 0 || start+batchSize > set.DataLength {
		return nil, nil, nil, fmt.Errorf("Batch [%d; %d) is out of corpus of %d samples", start, start+batchSize, set.DataLength)
	}
	window := SlicerOneStep{StartIdx: start, EndIdx: start + batchSize}
	imagesView, err := set.Images.Slice(window, nil, nil, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	stylesView, err := set.Styles.Slice(window, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	realnessView, err := set.Realness.Slice(window, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return imagesView.Materialize().(*tensor.Dense), stylesView.Materialize().(*tensor.Dense), realnessView.Materialize().(*tensor.Dense), nil
}
