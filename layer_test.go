package stylegan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestLayerConvolutionalFwd(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 1, 3, 3), gorgonia.WithName("conv_input"), gorgonia.WithValue(tensor.Ones(tensor.Float64, 2, 1, 3, 3)))
	weight := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 1, 2, 2), gorgonia.WithName("conv_w"), gorgonia.WithValue(tensor.Ones(tensor.Float64, 1, 1, 2, 2)))
	bias := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 1, 1, 1), gorgonia.WithName("conv_b"), gorgonia.WithValue(
		tensor.New(tensor.WithShape(1, 1, 1, 1), tensor.WithBacking([]float64{0.5})),
	))
	layer := &Layer{
		WeightNode:   weight,
		BiasNode:     bias,
		Type:         LayerConvolutional,
		KernelHeight: 2,
		KernelWidth:  2,
		Padding:      []int{0, 0},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
	}
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	require.True(t, out.Shape().Eq(tensor.Shape{2, 1, 2, 2}), "got shape %v", out.Shape())
	evalGraph(t, g)
	// Every 2x2 window over an all-ones image sums to 4, the bias adds 0.5.
	assert.InDeltaSlice(t, []float64{4.5, 4.5, 4.5, 4.5, 4.5, 4.5, 4.5, 4.5}, out.Value().Data().([]float64), 1e-12)
}

func TestLayerConvolutionalBatchNorm(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 1, 3, 3), gorgonia.WithName("conv_input"), gorgonia.WithValue(tensor.Ones(tensor.Float64, 2, 1, 3, 3)))
	weight := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 1, 2, 2), gorgonia.WithName("conv_w"), gorgonia.WithValue(tensor.Ones(tensor.Float64, 1, 1, 2, 2)))
	layer := &Layer{
		WeightNode:   weight,
		Type:         LayerConvolutional,
		KernelHeight: 2,
		KernelWidth:  2,
		Padding:      []int{0, 0},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
		BatchNorm:    true,
	}
	require.Nil(t, layer.ScaleNode)
	require.Nil(t, layer.ShiftNode)
	require.Nil(t, layer.NormOp())

	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	require.True(t, out.Shape().Eq(tensor.Shape{2, 1, 2, 2}), "got shape %v", out.Shape())

	// Affine pair is created on demand, identity-initialized and named after the kernel.
	require.NotNil(t, layer.ScaleNode)
	require.NotNil(t, layer.ShiftNode)
	require.NotNil(t, layer.NormOp())
	assert.Equal(t, "conv_w_gamma", layer.ScaleNode.Name())
	assert.Equal(t, "conv_w_beta", layer.ShiftNode.Name())

	evalGraph(t, g)
	// Convolving all-ones input by all-ones kernel gives a constant map, so
	// normalization collapses it to the shift values.
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 0, 0, 0, 0}, out.Value().Data().([]float64), 1e-9)
}

func TestLayerGlobalAvgPoolFwd(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 2, 2, 2), gorgonia.WithName("pool_input"), gorgonia.WithValue(
		tensor.New(tensor.WithShape(2, 2, 2, 2), tensor.WithBacking([]float64{
			1, 2, 3, 4,
			10, 20, 30, 40,
			5, 5, 5, 5,
			1, 3, 5, 7,
		})),
	))
	layer := &Layer{Type: LayerGlobalAvgPool}
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	require.True(t, out.Shape().Eq(tensor.Shape{2, 2}), "got shape %v", out.Shape())
	evalGraph(t, g)
	assert.InDeltaSlice(t, []float64{2.5, 25.0, 5.0, 4.0}, out.Value().Data().([]float64), 1e-12)
}

func TestLayerFlattenFwd(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 3, gorgonia.WithShape(2, 2, 3), gorgonia.WithName("flatten_input"), gorgonia.WithValue(
		tensor.New(tensor.WithShape(2, 2, 3), tensor.WithBacking([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})),
	))
	layer := &Layer{Type: LayerFlatten}
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	require.True(t, out.Shape().Eq(tensor.Shape{2, 6}), "got shape %v", out.Shape())
	evalGraph(t, g)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, out.Value().Data().([]float64), 1e-12)
}

func TestLayerLinearFwd(t *testing.T) {
	g := gorgonia.NewGraph()
	input := newValueMatrix(g, "linear_input", 2, 3, []float64{1, 2, 3, 4, 5, 6})
	weight := newValueMatrix(g, "linear_w", 2, 3, []float64{1, 0, 0, 0, 1, 0})
	bias := newValueMatrix(g, "linear_b", 1, 2, []float64{0.5, -0.5})
	layer := &Layer{
		WeightNode: weight,
		BiasNode:   bias,
		Type:       LayerLinear,
	}
	out, err := layer.Fwd(2, input)
	require.NoError(t, err)
	require.True(t, out.Shape().Eq(tensor.Shape{2, 2}), "got shape %v", out.Shape())
	evalGraph(t, g)
	assert.InDeltaSlice(t, []float64{1.5, 1.5, 4.5, 4.5}, out.Value().Data().([]float64), 1e-12)
}

func TestLayerUnknownType(t *testing.T) {
	g := gorgonia.NewGraph()
	input := newValueMatrix(g, "input", 2, 3, []float64{1, 2, 3, 4, 5, 6})
	layer := &Layer{Type: LayerType(99)}
	out, err := layer.Fwd(2, input)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Layer type '99' (uint16) is not handled")
}
