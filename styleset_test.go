package stylegan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

func TestGenerateStyleSet(t *testing.T) {
	set, err := GenerateStyleSet(4, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 4, set.DataLength)
	require.True(t, set.Images.Shape().Eq(tensor.Shape{4, InputChannels, InputHeight, InputWidth}))
	require.True(t, set.Styles.Shape().Eq(tensor.Shape{4, 3}))
	require.True(t, set.Realness.Shape().Eq(tensor.Shape{4, 1}))

	// Classes go round-robin, every odd sample is a fake.
	assert.Equal(t, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		1, 0, 0,
	}, set.Styles.Data().([]float64))
	assert.Equal(t, []float64{1, 0, 1, 0}, set.Realness.Data().([]float64))

	// Channels of a real sample plateau at a level encoding its class.
	pixels := InputHeight * InputWidth
	images := set.Images.Data().([]float64)
	for c := 0; c < InputChannels; c++ {
		channel := images[c*pixels : (c+1)*pixels]
		wantLevel := 1.0 / 4.0 * float64(c+1) / float64(InputChannels)
		assert.InDelta(t, wantLevel, stat.Mean(channel, nil), 0.01, "channel #%d of sample #0", c)
	}
}

func TestGenerateStyleSetValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	set, err := GenerateStyleSet(0, 3, rng)
	assert.Nil(t, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Number of samples must be >= 1, but got 0")

	set, err = GenerateStyleSet(4, 0, rng)
	assert.Nil(t, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Number of style classes must be >= 1, but got 0")
}

func TestStyleSetBatch(t *testing.T) {
	set, err := GenerateStyleSet(4, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	images, styles, realness, err := set.Batch(1, 2)
	require.NoError(t, err)
	require.True(t, images.Shape().Eq(tensor.Shape{2, InputChannels, InputHeight, InputWidth}))
	require.True(t, styles.Shape().Eq(tensor.Shape{2, 3}))
	require.True(t, realness.Shape().Eq(tensor.Shape{2, 1}))

	assert.Equal(t, []float64{0, 1, 0, 0, 0, 1}, styles.Data().([]float64))
	assert.Equal(t, []float64{0, 1}, realness.Data().([]float64))
	sampleSize := InputChannels * InputHeight * InputWidth
	assert.Equal(t, set.Images.Data().([]float64)[sampleSize:3*sampleSize], images.Data().([]float64))
}

func TestStyleSetBatchOutOfRange(t *testing.T) {
	set, err := GenerateStyleSet(4, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	_, _, _, err = set.Batch(3, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Batch [3; 5) is out of corpus of 4 samples")

	_, _, _, err = set.Batch(-1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of corpus")
}
