package stylegan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Weight+Bias+ActivationFunction combo with optional batch normalization
// squeezed between the weighted operation and the activation.
//
// ScaleNode/ShiftNode are the learnable affine pair of batch normalization. They
// must match the layer's full output shape, so when left nil they are created
// during Fwd (identity-initialized) on the same graph the layer operates on.
// WantShape, when set, is the expected output shape of the activated layer with
// the batch axis excluded; feedforward fails if the actual output differs.
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	ScaleNode  *gorgonia.Node
	ShiftNode  *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int

	BatchNorm         bool
	BatchNormMomentum float64
	BatchNormEpsilon  float64

	WantShape tensor.Shape

	normOp *gorgonia.BatchNormOp
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerGlobalAvgPool
)

var (
	allowedNoWeights = []LayerType{LayerFlatten, LayerGlobalAvgPool}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// NormOp Returns reference to the batch normalization op of the layer.
// It is nil until Fwd has been called on a layer with BatchNorm enabled.
func (layer *Layer) NormOp() *gorgonia.BatchNormOp {
	return layer.normOp
}

// Fwd Feedforwards the provided input through the layer, returning the
// non-activated output: weighted operation, then bias, then batch normalization.
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for bias of linear layers
// input - Input node
func (layer *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	var out *gorgonia.Node
	var err error

	switch layer.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(layer.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
	case LayerConvolutional:
		out, err = gorgonia.Conv2d(input, layer.WeightNode, tensor.Shape{layer.KernelHeight, layer.KernelWidth}, layer.Padding, layer.Stride, layer.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerFlatten:
		out, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	case LayerGlobalAvgPool:
		out, err = gorgonia.Mean(input, 2, 3)
		if err != nil {
			return nil, errors.Wrap(err, "Can't average input over spatial axes")
		}
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", layer.Type)
	}

	if layer.BiasNode != nil {
		switch layer.Type {
		case LayerConvolutional:
			// Bias has shape (1, channels, 1, 1); broadcast it over batch and spatial axes.
			out, err = gorgonia.BroadcastAdd(out, layer.BiasNode, nil, []byte{0, 2, 3})
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias [in broadcast term with batch_size = %d] to non-activated output", batchSize))
			}
		default:
			if batchSize < 2 {
				out, err = gorgonia.Add(out, layer.BiasNode)
				if err != nil {
					return nil, errors.Wrap(err, "Can't add bias to non-activated output")
				}
			} else {
				out, err = gorgonia.BroadcastAdd(out, layer.BiasNode, nil, []byte{0})
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias [in broadcast term with batch_size = %d] to non-activated output", batchSize))
				}
			}
		}
	}

	if layer.BatchNorm {
		if layer.ScaleNode == nil || layer.ShiftNode == nil {
			namePrefix := "bn"
			if layer.WeightNode != nil {
				namePrefix = layer.WeightNode.Name()
			}
			layer.ScaleNode = gorgonia.NewTensor(input.Graph(), out.Dtype(), out.Dims(), gorgonia.WithShape(out.Shape()...), gorgonia.WithName(namePrefix+"_gamma"), gorgonia.WithInit(gorgonia.Ones()))
			layer.ShiftNode = gorgonia.NewTensor(input.Graph(), out.Dtype(), out.Dims(), gorgonia.WithShape(out.Shape()...), gorgonia.WithName(namePrefix+"_beta"), gorgonia.WithInit(gorgonia.Zeroes()))
		}
		momentum := layer.BatchNormMomentum
		if momentum == 0 {
			momentum = 0.9
		}
		epsilon := layer.BatchNormEpsilon
		if epsilon == 0 {
			epsilon = 1e-5
		}
		normed, scale, shift, op, err := gorgonia.BatchNorm(out, layer.ScaleNode, layer.ShiftNode, momentum, epsilon)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply batch normalization to non-activated output")
		}
		layer.ScaleNode = scale
		layer.ShiftNode = shift
		layer.normOp = op
		out = normed
	}

	return out, nil
}
