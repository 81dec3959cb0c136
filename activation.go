package stylegan

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia's element-wise operations over a single node
type ActivationFunc func(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)

// Options Struct for holding options for certain activation functions.
type Options struct {
	Axis []int
}

func NoActivation(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) { return a, nil }
func Rectify(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)     { return gorgonia.Rectify(a) }
func Sigmoid(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)     { return gorgonia.Sigmoid(a) }
func Tanh(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)        { return gorgonia.Tanh(a) }
func Softmax(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
	for i := range opts {
		// First i-th option with provided field 'Axis' would be considered for use.
		if len(opts[i].Axis) > 0 {
			return gorgonia.SoftMax(a, opts[i].Axis...)
		}
	}
	return gorgonia.SoftMax(a)
}

// LeakyRectify Returns activation function computing max(x, 0) + negativeSlope*min(x, 0),
// composed as Rectify(x) - negativeSlope*Rectify(-x).
// Dtype of the node is expected to be Float64.
func LeakyRectify(negativeSlope float64) ActivationFunc {
	return func(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
		pos, err := gorgonia.Rectify(a)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do max(x, 0)")
		}
		neg, err := gorgonia.Neg(a)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do -1*x")
		}
		negPart, err := gorgonia.Rectify(neg)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do max(-x, 0)")
		}
		slope := gorgonia.NewScalar(a.Graph(), a.Dtype(), gorgonia.WithValue(negativeSlope))
		scaled, err := gorgonia.Mul(slope, negPart)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do k*max(-x, 0)")
		}
		return gorgonia.Sub(pos, scaled)
	}
}

// SoftmaxAlong Returns softmax activation normalizing along the provided axis,
// ignoring any options passed at call site.
func SoftmaxAlong(axis int) ActivationFunc {
	return func(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
		return gorgonia.SoftMax(a, axis)
	}
}
