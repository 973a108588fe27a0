package neural_network

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
)

// History records the weighted mean loss per epoch.
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss,omitempty"`
}

// network is what the SGD loop needs from a model.
type network interface {
	parameters() [][]float64
	// lossGrad returns the weighted loss sum and the weight total over
	// rows. When grads is non-nil it runs in training mode and accumulates
	// the gradient of the loss sum into grads.
	lossGrad(X, Y, W *mat.Dense, rows []int, grads [][]float64, rng *rand.Rand) (loss, weight float64)
}

// maskWeights returns W, or a mask that is 1 wherever Y is labelled.
func maskWeights(Y, W mat.Matrix) *mat.Dense {
	n, t := Y.Dims()
	out := mat.NewDense(n, t, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < t; j++ {
			y := Y.At(i, j)
			switch {
			case math.IsNaN(y):
			case W == nil:
				out.Set(i, j, 1)
			default:
				out.Set(i, j, W.At(i, j))
			}
		}
	}
	return out
}

// train runs minibatch SGD with momentum and lr/(1+decay*iter) decay.
func train(name string, net network, X, Y, W *mat.Dense, p TrainParams) (History, error) {
	var hist History
	n, _ := X.Dims()
	nVal := int(float64(n) * p.ValidationSplit)
	nTrain := n - nVal
	if nTrain < 1 {
		return hist, errors.NewValueError(name+".Fit", "validation split leaves no training rows")
	}

	logger := log.GetLoggerWithName(name)
	start := time.Now()
	rng := rand.New(rand.NewPCG(p.RandomState, 0x6e6574))

	params := net.parameters()
	grads := make([][]float64, len(params))
	velocity := make([][]float64, len(params))
	for k, prm := range params {
		grads[k] = make([]float64, len(prm))
		velocity[k] = make([]float64, len(prm))
	}

	valRows := make([]int, nVal)
	for i := range valRows {
		valRows[i] = nTrain + i
	}

	iter := 0
	for epoch := 1; epoch <= p.NEpochs; epoch++ {
		perm := rng.Perm(nTrain)
		var epochLoss, epochWeight float64
		for b := 0; b < nTrain; b += p.BatchSize {
			rows := perm[b:min(b+p.BatchSize, nTrain)]
			for _, g := range grads {
				clear(g)
			}
			loss, weight := net.lossGrad(X, Y, W, rows, grads, rng)
			if weight == 0 {
				continue
			}
			epochLoss += loss
			epochWeight += weight

			lr := p.LearningRate / (1 + p.Decay*float64(iter))
			for k, prm := range params {
				v := velocity[k]
				for j, g := range grads[k] {
					v[j] = p.Momentum*v[j] - lr*g/weight
					prm[j] += v[j]
				}
			}
			iter++
		}

		trainLoss := errors.SafeDivide(epochLoss, epochWeight)
		if err := errors.CheckScalar(name+".Fit", trainLoss, epoch); err != nil {
			return hist, errors.Wrap(err, "training diverged; lower the learning rate")
		}
		hist.Loss = append(hist.Loss, trainLoss)
		fields := []any{log.EpochKey, epoch, log.LossKey, trainLoss}
		if nVal > 0 {
			vl, vw := net.lossGrad(X, Y, W, valRows, nil, nil)
			valLoss := errors.SafeDivide(vl, vw)
			hist.ValLoss = append(hist.ValLoss, valLoss)
			fields = append(fields, log.ValLossKey, valLoss)
		}
		logger.Debug("epoch finished", fields...)
	}

	logger.Info("training finished",
		log.SamplesKey, nTrain,
		log.EpochKey, p.NEpochs,
		log.LossKey, hist.Loss[len(hist.Loss)-1],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return hist, nil
}

// glorot fills w with Glorot-uniform values.
func glorot(rng *rand.Rand, w []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * limit
	}
}
