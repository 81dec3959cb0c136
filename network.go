package stylegan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Layers - simple sequence of layers
// out - alias to activated output of last layer
// outs - activated outputs of every layer in feedforward order
type Network struct {
	Name   string
	Layers []*Layer
	out    *gorgonia.Node
	outs   []*gorgonia.Node
}

// Out Returns reference to output node
func (net *Network) Out() *gorgonia.Node {
	return net.out
}

// LayerOut Returns reference to the activated output node of i-th layer.
// Fails if the network hasn't been fed forward yet.
func (net *Network) LayerOut(i int) (*gorgonia.Node, error) {
	if i < 0 || i >= len(net.Layers) {
		return nil, fmt.Errorf("Network has %d layers, can't access output of layer #%d", len(net.Layers), i)
	}
	if net.outs == nil || net.outs[i] == nil {
		return nil, fmt.Errorf("Network hasn't been fed forward yet, output of layer #%d is not defined", i)
	}
	return net.outs[i], nil
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 4*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			if l.WeightNode != nil {
				learnables = append(learnables, l.WeightNode)
			}
			if l.BiasNode != nil {
				learnables = append(learnables, l.BiasNode)
			}
			if l.ScaleNode != nil {
				learnables = append(learnables, l.ScaleNode)
			}
			if l.ShiftNode != nil {
				learnables = append(learnables, l.ShiftNode)
			}
		}
	}
	return learnables
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
// Every layer with a non-empty WantShape is verified right after its activation:
// mismatch between the expected shape (batch axis included) and the actual one
// stops the feedforward with an error naming both.
func (net *Network) Fwd(input *gorgonia.Node, batchSize int) error {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}

	if input == nil {
		return fmt.Errorf("Input node of '%s' is nil", networkName)
	}
	if len(net.Layers) == 0 {
		return fmt.Errorf("Network must have one layer atleast")
	}

	net.outs = make([]*gorgonia.Node, len(net.Layers))
	lastActivated := input
	for i := 0; i < len(net.Layers); i++ {
		layer := net.Layers[i]
		if layer == nil {
			return fmt.Errorf("Network's layer #%d is nil", i)
		}
		if layer.WeightNode == nil && !noWeightsAllowed(layer.Type) {
			return fmt.Errorf("Network's layer's #%d WeightNode is nil", i)
		}
		if layer.Activation == nil {
			return fmt.Errorf("Network's layer's #%d activation function is nil (use NoActivation for pass-through)", i)
		}
		// Feedforward input through i-th layer
		layerNonActivated, err := layer.Fwd(batchSize, lastActivated)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("[Network, Layer #%d] Can't feedforward input before activation", i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_%d", networkName, i))(layerNonActivated)
		// Activate i-th layer's output
		layerActivated, err := layer.Activation(layerNonActivated)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of Network's layer #%d", i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_activated_%d", networkName, i))(layerActivated)
		if len(layer.WantShape) > 0 {
			want := append(tensor.Shape{batchSize}, layer.WantShape...)
			got := layerActivated.Shape()
			if !got.Eq(want) {
				return fmt.Errorf("Output of '%s' layer #%d must have shape %v, but got %v", networkName, i, want, got)
			}
		}
		net.outs[i] = layerActivated
		lastActivated = layerActivated
	}
	net.out = lastActivated
	return nil
}

// CloneTo Rebuilds the network on the provided graph.
//
// Weight, bias and batch normalization affine nodes of the clone share value
// objects with the source network, so solver updates on either side stay
// visible to both. Batch normalization statistics are not carried over: they
// start fresh when the clone is fed forward.
func (net *Network) CloneTo(g *gorgonia.ExprGraph) (*Network, error) {
	cloned := &Network{
		Name:   net.Name,
		Layers: make([]*Layer, len(net.Layers)),
	}
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
			return nil, fmt.Errorf("Network's layer #%d has nil weight node", i)
		}
		clonedLayer := &Layer{
			Activation:        l.Activation,
			Type:              l.Type,
			KernelHeight:      l.KernelHeight,
			KernelWidth:       l.KernelWidth,
			Padding:           l.Padding,
			Stride:            l.Stride,
			Dilation:          l.Dilation,
			BatchNorm:         l.BatchNorm,
			BatchNormMomentum: l.BatchNormMomentum,
			BatchNormEpsilon:  l.BatchNormEpsilon,
			WantShape:         l.WantShape,
		}
		if l.WeightNode != nil {
			clonedLayer.WeightNode = gorgonia.NewTensor(g, gorgonia.Float64, l.WeightNode.Dims(), gorgonia.WithShape(l.WeightNode.Shape()...), gorgonia.WithName(l.WeightNode.Name()), gorgonia.WithValue(l.WeightNode.Value()))
		}
		if l.BiasNode != nil {
			clonedLayer.BiasNode = gorgonia.NewTensor(g, gorgonia.Float64, l.BiasNode.Dims(), gorgonia.WithShape(l.BiasNode.Shape()...), gorgonia.WithName(l.BiasNode.Name()), gorgonia.WithValue(l.BiasNode.Value()))
		}
		if l.ScaleNode != nil {
			clonedLayer.ScaleNode = gorgonia.NewTensor(g, gorgonia.Float64, l.ScaleNode.Dims(), gorgonia.WithShape(l.ScaleNode.Shape()...), gorgonia.WithName(l.ScaleNode.Name()), gorgonia.WithValue(l.ScaleNode.Value()))
		}
		if l.ShiftNode != nil {
			clonedLayer.ShiftNode = gorgonia.NewTensor(g, gorgonia.Float64, l.ShiftNode.Dims(), gorgonia.WithShape(l.ShiftNode.Shape()...), gorgonia.WithName(l.ShiftNode.Name()), gorgonia.WithValue(l.ShiftNode.Value()))
		}
		cloned.Layers[i] = clonedLayer
	}
	return cloned, nil
}
