package stylegan

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Input contract of the discriminator: batches of RGB images of fixed spatial size.
const (
	InputChannels = 3
	InputHeight   = 256
	InputWidth    = 256
)

const (
	featureWidth      = 512
	batchNormMomentum = 0.9
	batchNormEpsilon  = 1e-5
)

// Geometry of the convolutional trunk. Strided 4x4 stages downsample
// (batch, 3, 256, 256) input to (batch, 512, 16, 16), the final 3x3 stride-1
// stage keeps the spatial size. Batch normalization is applied on every stage
// except the first one.
var trunkStages = []struct {
	inChannels  int
	outChannels int
	kernel      int
	stride      int
	batchNorm   bool
	outSize     int
}{
	{InputChannels, 64, 4, 2, false, 128},
	{64, 128, 4, 2, true, 64},
	{128, 256, 4, 2, true, 32},
	{256, 512, 4, 2, true, 16},
	{512, 512, 3, 1, true, 16},
}

// Config Construction parameters for the discriminator.
//
// ReluNegativeSlope - slope of leaky rectifications on negative arguments (0.2 is the usual pick)
// StyleClasses - number of style classes the style head distinguishes, must be >= 1
// BatchSize - number of examples in every batch fed to Fwd, must be >= 1
// Seed - seed of weights initialization
type Config struct {
	ReluNegativeSlope float64
	StyleClasses      int
	BatchSize         int
	Seed              int64
}

// Discriminator Convolutional classifier with two heads on a shared trunk:
// realism probability of every image in a batch and its style class scores.
//
// The trunk is five convolutional stages followed by global average pooling
// down to a 512-wide feature vector per example. The probabilities head is
// Linear(512 => 1) + Sigmoid. The styles head is Linear(512 => StyleClasses)
// + Softmax taken along the batch axis: scores of a class are normalized
// across examples of the batch, not across classes of an example, so rows of
// Styles() do not sum to one. Callers needing per-example distributions must
// renormalize themselves.
type Discriminator struct {
	cfg   Config
	graph *gorgonia.ExprGraph

	trunk         *Network
	probabilities *Network
	styles        *Network
}

// NewDiscriminator Constructor for Discriminator. All weights are materialized
// on the provided graph right away: convolutional kernels and linear weights are
// Glorot-normal draws from a generator seeded with cfg.Seed, biases start at zero.
// Affine pairs of batch normalization are created identity-initialized during Fwd
// since their shape depends on the batch size of the stage output.
func NewDiscriminator(g *gorgonia.ExprGraph, cfg Config) (*Discriminator, error) {
	if g == nil {
		return nil, fmt.Errorf("Graph is nil")
	}
	if cfg.StyleClasses < 1 {
		return nil, fmt.Errorf("Number of style classes must be >= 1, but got %d", cfg.StyleClasses)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("Batch size must be >= 1, but got %d", cfg.BatchSize)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	leaky := LeakyRectify(cfg.ReluNegativeSlope)

	trunkLayers := make([]*Layer, 0, len(trunkStages)+1)
	for i, stage := range trunkStages {
		weight, err := GlorotNormDense(rng, 1.0, stage.outChannels, stage.inChannels, stage.kernel, stage.kernel)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't init weights of convolutional stage #%d", i+1))
		}
		weightNode := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(stage.outChannels, stage.inChannels, stage.kernel, stage.kernel), gorgonia.WithName(fmt.Sprintf("discriminator_w%d", i)), gorgonia.WithValue(weight))
		biasNode := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, stage.outChannels, 1, 1), gorgonia.WithName(fmt.Sprintf("discriminator_b%d", i)), gorgonia.WithInit(gorgonia.Zeroes()))
		trunkLayers = append(trunkLayers, &Layer{
			WeightNode:        weightNode,
			BiasNode:          biasNode,
			Activation:        leaky,
			Type:              LayerConvolutional,
			KernelHeight:      stage.kernel,
			KernelWidth:       stage.kernel,
			Padding:           []int{1, 1},
			Stride:            []int{stage.stride, stage.stride},
			Dilation:          []int{1, 1},
			BatchNorm:         stage.batchNorm,
			BatchNormMomentum: batchNormMomentum,
			BatchNormEpsilon:  batchNormEpsilon,
			WantShape:         tensor.Shape{stage.outChannels, stage.outSize, stage.outSize},
		})
	}
	trunkLayers = append(trunkLayers, &Layer{
		Type:       LayerGlobalAvgPool,
		Activation: NoActivation,
		WantShape:  tensor.Shape{featureWidth},
	})

	probsWeight, err := GlorotNormDense(rng, 1.0, 1, featureWidth)
	if err != nil {
		return nil, errors.Wrap(err, "Can't init weights of probabilities head")
	}
	probsW := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, featureWidth), gorgonia.WithName("discriminator_probabilities_w"), gorgonia.WithValue(probsWeight))
	probsB := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 1), gorgonia.WithName("discriminator_probabilities_b"), gorgonia.WithInit(gorgonia.Zeroes()))

	stylesWeight, err := GlorotNormDense(rng, 1.0, cfg.StyleClasses, featureWidth)
	if err != nil {
		return nil, errors.Wrap(err, "Can't init weights of styles head")
	}
	stylesW := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.StyleClasses, featureWidth), gorgonia.WithName("discriminator_styles_w"), gorgonia.WithValue(stylesWeight))
	stylesB := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, cfg.StyleClasses), gorgonia.WithName("discriminator_styles_b"), gorgonia.WithInit(gorgonia.Zeroes()))

	return &Discriminator{
		cfg:   cfg,
		graph: g,
		trunk: &Network{
			Name:   "discriminator",
			Layers: trunkLayers,
		},
		probabilities: &Network{
			Name: "discriminator_probabilities",
			Layers: []*Layer{
				{
					WeightNode: probsW,
					BiasNode:   probsB,
					Type:       LayerLinear,
					Activation: Sigmoid,
					WantShape:  tensor.Shape{1},
				},
			},
		},
		styles: &Network{
			Name: "discriminator_styles",
			Layers: []*Layer{
				{
					WeightNode: stylesW,
					BiasNode:   stylesB,
					Type:       LayerLinear,
					// Softmax along axis 0 normalizes class scores across the batch.
					Activation: SoftmaxAlong(0),
					WantShape:  tensor.Shape{cfg.StyleClasses},
				},
			},
		},
	}, nil
}

// Fwd Initializates feedforward for provided input: the trunk first, then both
// heads on top of the pooled features. The input node must carry a
// (BatchSize, 3, 256, 256) shape; the output shape of every stage is verified
// against the trunk geometry and any mismatch fails with both shapes named.
func (d *Discriminator) Fwd(input *gorgonia.Node) error {
	if input == nil {
		return fmt.Errorf("[Discriminator] Input node is nil")
	}
	got := input.Shape()
	if len(got) != 4 {
		return fmt.Errorf("[Discriminator] Input must be 4-dimensional (batch, channels, height, width), but got shape %v", got)
	}
	want := tensor.Shape{d.cfg.BatchSize, InputChannels, InputHeight, InputWidth}
	if !got.Eq(want) {
		return fmt.Errorf("[Discriminator] Input must have shape %v, but got %v", want, got)
	}
	if err := d.trunk.Fwd(input, d.cfg.BatchSize); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	if err := d.probabilities.Fwd(d.trunk.Out(), d.cfg.BatchSize); err != nil {
		return errors.Wrap(err, "[Discriminator, probabilities head]")
	}
	if err := d.styles.Fwd(d.trunk.Out(), d.cfg.BatchSize); err != nil {
		return errors.Wrap(err, "[Discriminator, styles head]")
	}
	return nil
}

// Probabilities Returns reference to output node of the realism head, shaped (BatchSize, 1).
func (d *Discriminator) Probabilities() *gorgonia.Node {
	return d.probabilities.Out()
}

// Styles Returns reference to output node of the style head, shaped (BatchSize, StyleClasses).
func (d *Discriminator) Styles() *gorgonia.Node {
	return d.styles.Out()
}

// Features Returns reference to the pooled feature vector node, shaped (BatchSize, 512).
func (d *Discriminator) Features() *gorgonia.Node {
	return d.trunk.Out()
}

// StageOut Returns reference to the activated output node of i-th convolutional
// stage, where stages are numbered 1 to 5.
func (d *Discriminator) StageOut(stage int) (*gorgonia.Node, error) {
	if stage < 1 || stage > len(trunkStages) {
		return nil, fmt.Errorf("Discriminator has convolutional stages #1..#%d, can't access output of stage #%d", len(trunkStages), stage)
	}
	return d.trunk.LayerOut(stage - 1)
}

// Learnables Returns learnables nodes in feedforward order: per trunk stage its
// kernel, bias and (where batch normalization applies) scale and shift, then the
// probabilities head pair, then the styles head pair. Affine pairs of batch
// normalization appear after Fwd has been called.
func (d *Discriminator) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 22)
	learnables = append(learnables, d.trunk.Learnables()...)
	learnables = append(learnables, d.probabilities.Learnables()...)
	learnables = append(learnables, d.styles.Learnables()...)
	return learnables
}

// BatchNormOps Returns batch normalization ops of the trunk in stage order.
// Empty until Fwd has been called.
func (d *Discriminator) BatchNormOps() []*gorgonia.BatchNormOp {
	ops := make([]*gorgonia.BatchNormOp, 0, len(d.trunk.Layers))
	for _, l := range d.trunk.Layers {
		if l != nil && l.NormOp() != nil {
			ops = append(ops, l.NormOp())
		}
	}
	return ops
}

// SetTraining Switches batch normalization between batch statistics (training)
// and accumulated moving statistics (inference).
func (d *Discriminator) SetTraining(training bool) {
	for _, op := range d.BatchNormOps() {
		if training {
			op.SetTraining()
		} else {
			op.SetTesting()
		}
	}
}

// ParamGradient Pairs a learnable parameter with the gradient value accumulated for it.
type ParamGradient struct {
	Name     string
	Param    *gorgonia.Node
	Gradient gorgonia.Value
}

// Gradients Returns a snapshot of gradients of every learnable in Learnables()
// order. If any parameter has no gradient attached (gorgonia.Grad was never
// called, or the parameter is disconnected from the cost), an error listing
// every such parameter is returned and no snapshot is produced.
func (d *Discriminator) Gradients() ([]ParamGradient, error) {
	learnables := d.Learnables()
	grads := make([]ParamGradient, 0, len(learnables))
	missing := []string{}
	for _, node := range learnables {
		grad, err := node.Grad()
		if err != nil {
			missing = append(missing, node.Name())
			continue
		}
		grads = append(grads, ParamGradient{
			Name:     node.Name(),
			Param:    node,
			Gradient: grad,
		})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("No gradients found for parameters [%s]: has the backward pass been run?", strings.Join(missing, ", "))
	}
	return grads, nil
}

// DisplayGradients Writes the ordered parameter gradient listing to the provided
// writer, one parameter per line: name and gradient shape. Full gradient values
// stay available through Gradients(); a 512-channel kernel rendered in whole
// would bury the listing. Fails without writing anything if any parameter has
// no gradient.
func (d *Discriminator) DisplayGradients(w io.Writer) error {
	grads, err := d.Gradients()
	if err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	for i := range grads {
		fmt.Fprintf(w, "Parameter #%d '%s': gradient of shape %v\n", i, grads[i].Name, grads[i].Gradient.Shape())
	}
	return nil
}

// Clone Rebuilds the discriminator on another graph, the way an adversarial
// wrapper embeds a frozen copy into the graph of its generator. Weight values
// are shared with the receiver, so solver updates on either side stay visible
// to both; batch normalization statistics start fresh. The clone must be fed
// forward on an input node of its own graph before use.
func (d *Discriminator) Clone(g *gorgonia.ExprGraph) (*Discriminator, error) {
	if g == nil {
		return nil, fmt.Errorf("Graph is nil")
	}
	if g == d.graph {
		return nil, fmt.Errorf("Clone requires a graph other than the one the discriminator was built on")
	}
	trunk, err := d.trunk.CloneTo(g)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't clone trunk")
	}
	probabilities, err := d.probabilities.CloneTo(g)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't clone probabilities head")
	}
	styles, err := d.styles.CloneTo(g)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't clone styles head")
	}
	return &Discriminator{
		cfg:           d.cfg,
		graph:         g,
		trunk:         trunk,
		probabilities: probabilities,
		styles:        styles,
	}, nil
}
