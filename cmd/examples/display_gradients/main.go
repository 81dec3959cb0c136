package main

import (
	"fmt"
	"math/rand"
	"os"

	stylegan "github.com/igudesman/StyleGAN"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	negativeSlope = 0.2
	batchSize     = 2
	styleClasses  = 4
	seed          = int64(42)
)

func main() {
	rng := rand.New(rand.NewSource(seed))

	/* Define Gorgonia's graph */
	g := gorgonia.NewGraph()

	/* Define discriminator */
	dis, err := stylegan.NewDiscriminator(g, stylegan.Config{
		ReluNegativeSlope: negativeSlope,
		StyleClasses:      styleClasses,
		BatchSize:         batchSize,
		Seed:              seed,
	})
	if err != nil {
		panic(err)
	}

	/* Prepare input values: a pair of noise images */
	inputDense := stylegan.NormRandDense(rng, batchSize, stylegan.InputChannels, stylegan.InputHeight, stylegan.InputWidth)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, stylegan.InputChannels, stylegan.InputHeight, stylegan.InputWidth), gorgonia.WithName("discriminator_input"), gorgonia.WithValue(inputDense))
	err = dis.Fwd(input)
	if err != nil {
		panic(err)
	}

	/* Prepare target values: first sample is real of class #2, second is fake of class #0 */
	targetRealness := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("realness_target"), gorgonia.WithValue(
		tensor.New(tensor.WithShape(batchSize, 1), tensor.WithBacking([]float64{1.0, 0.0})),
	))
	targetStyles := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, styleClasses), gorgonia.WithName("styles_target"), gorgonia.WithValue(
		tensor.New(tensor.WithShape(batchSize, styleClasses), tensor.WithBacking([]float64{
			0.0, 0.0, 1.0, 0.0,
			1.0, 0.0, 0.0, 0.0,
		})),
	))

	/* Prepare cost node */
	cost, err := stylegan.DiscriminatorLoss(dis.Probabilities(), targetRealness, dis.Styles(), targetStyles)
	if err != nil {
		panic(err)
	}
	var costVal gorgonia.Value
	gorgonia.Read(cost, &costVal)

	/* Define gradients */
	_, err = gorgonia.Grad(cost, dis.Learnables()...)
	if err != nil {
		panic(err)
	}

	/* Run forward and backward passes once */
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(dis.Learnables()...))
	defer tm.Close()
	err = tm.RunAll()
	if err != nil {
		panic(err)
	}

	fmt.Println("Loss on the noise batch:", costVal)
	err = dis.DisplayGradients(os.Stdout)
	if err != nil {
		panic(err)
	}
}
