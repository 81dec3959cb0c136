package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	stylegan "github.com/igudesman/StyleGAN"
	"github.com/schollz/progressbar/v3"
	"gorgonia.org/gorgonia"
)

var (
	learningRate  = 0.0002
	negativeSlope = 0.2
	batchSize     = 2
	numSamples    = 8
	numOfEpochs   = 5
	styleClasses  = 3
	seed          = int64(1337)

	styleNames = []string{"monet", "photo", "ukiyoe"}
	outputRoot = "training_output"
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

	/* Prepare tensor for input values */
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, stylegan.InputChannels, stylegan.InputHeight, stylegan.InputWidth), gorgonia.WithName("discriminator_input"))
	err = dis.Fwd(input)
	if err != nil {
		panic(err)
	}

	/* Prepare tensors for target values */
	targetRealness := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("realness_target"))
	targetStyles := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, styleClasses), gorgonia.WithName("styles_target"))

	/* Prepare variables for storing the discriminator's outputs */
	var probsVal, stylesVal gorgonia.Value
	gorgonia.Read(dis.Probabilities(), &probsVal)
	gorgonia.Read(dis.Styles(), &stylesVal)

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

	/* Define tape machine */
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(dis.Learnables()...))
	defer tm.Close()

	/* Initialize solver */
	solver := gorgonia.NewRMSPropSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(learningRate))

	/* Synthesize training corpus */
	set, err := stylegan.GenerateStyleSet(numSamples, styleClasses, rng)
	if err != nil {
		panic(err)
	}

	numParams := 0
	for _, node := range dis.Learnables() {
		numParams += node.Shape().TotalSize()
	}
	fmt.Printf("Discriminator has %s learnable values across %d parameter tensors\n", humanize.Comma(int64(numParams)), len(dis.Learnables()))

	runDir := filepath.Join(outputRoot, uuid.NewString())
	err = os.MkdirAll(runDir, 0755)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Artifacts of this run go to %s\n", runDir)

	/* Run through all epochs */
	lossHistory := make([]float64, 0, numOfEpochs)
	bar := progressbar.Default(int64(numOfEpochs), "training")
	for e := 0; e < numOfEpochs; e++ {
		epochLoss := 0.0
		steps := 0
		for i := 0; i+batchSize <= set.DataLength; i += batchSize {
			imagesBatch, stylesBatch, realnessBatch, err := set.Batch(i, batchSize)
			if err != nil {
				panic(err)
			}
			err = gorgonia.Let(input, imagesBatch)
			if err != nil {
				panic(err)
			}
			err = gorgonia.Let(targetRealness, realnessBatch)
			if err != nil {
				panic(err)
			}
			err = gorgonia.Let(targetStyles, stylesBatch)
			if err != nil {
				panic(err)
			}

			/* Run training step */
			err = tm.RunAll()
			if err != nil {
				panic(err)
			}
			err = solver.Step(gorgonia.NodesToValueGrads(dis.Learnables()))
			if err != nil {
				panic(err)
			}
			tm.Reset()

			epochLoss += costVal.Data().(float64)
			steps++
		}
		lossHistory = append(lossHistory, epochLoss/float64(steps))
		bar.Add(1)
	}

	/* Plot loss curve */
	lossChart := filepath.Join(runDir, "loss.png")
	err = stylegan.PlotLossCurve(lossHistory, lossChart)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Loss went %.5f => %.5f over %d epochs, chart saved to %s\n", lossHistory[0], lossHistory[len(lossHistory)-1], numOfEpochs, lossChart)

	/* Evaluate the first batch with moving batch normalization statistics */
	dis.SetTraining(false)
	imagesBatch, stylesBatch, realnessBatch, err := set.Batch(0, batchSize)
	if err != nil {
		panic(err)
	}
	err = gorgonia.Let(input, imagesBatch)
	if err != nil {
		panic(err)
	}
	err = gorgonia.Let(targetRealness, realnessBatch)
	if err != nil {
		panic(err)
	}
	err = gorgonia.Let(targetStyles, stylesBatch)
	if err != nil {
		panic(err)
	}
	err = tm.RunAll()
	if err != nil {
		panic(err)
	}
	tm.Reset()

	fmt.Println("Realism probabilities of the first batch (odd samples are noise):", probsVal)
	fmt.Printf("Style scores over classes %v (normalized along the batch axis):\n%v\n", styleNames, stylesVal)
}
