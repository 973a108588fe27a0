package neural_network

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/core/parallel"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

const kernelSize = 3

// CNN3D is a single 3x3x3 valid convolution with ReLU, global average
// pooling, and a dense output unit per task. Rows of X are voxel grids
// flattened channel-major: index c*G³ + x*G² + y*G + z.
type CNN3D struct {
	TrainParams
	NFilters int
	GridSize int
	Channels int
	NTasks   int

	// Kernel is NFilters×Channels×3×3×3, Dense is NFilters×NTasks
	Kernel, KernelBias []float64
	Dense, DenseBias   []float64

	History History
	fitted  bool
}

// NewCNN3D returns a network for grids of the given edge length and
// channel count. The default loss is mean squared error.
func NewCNN3D(gridSize, channels int, opts ...Option) *CNN3D {
	c := newConfig(MeanSquaredError, opts)
	return &CNN3D{TrainParams: c.TrainParams, NFilters: c.nFilters, GridSize: gridSize, Channels: channels}
}

func (c *CNN3D) IsFitted() bool { return c.fitted }

func (c *CNN3D) inputSize() int {
	return c.Channels * c.GridSize * c.GridSize * c.GridSize
}

func (c *CNN3D) outSize() int { return c.GridSize - kernelSize + 1 }

func (c *CNN3D) Fit(X, Y, W mat.Matrix) (err error) {
	defer errors.Recover(&err, "CNN3D.Fit")

	if err := c.validate(); err != nil {
		return err
	}
	if c.NFilters < 1 {
		return errors.NewValidationError("n_filters", "must be at least 1", c.NFilters)
	}
	if c.GridSize < kernelSize || c.Channels < 1 {
		return errors.NewValidationError("grid_size", "grid must be at least 3 voxels wide with one channel", c.GridSize)
	}
	Xd, Yd, Wd, err := checkTraining("CNN3D.Fit", X, Y, W)
	if err != nil {
		return err
	}
	if _, d := Xd.Dims(); d != c.inputSize() {
		return errors.NewDimensionError("CNN3D.Fit", c.inputSize(), d, 1)
	}
	_, c.NTasks = Yd.Dims()

	rng := rand.New(rand.NewPCG(c.RandomState, 3))
	fanIn := c.Channels * kernelSize * kernelSize * kernelSize
	c.Kernel = make([]float64, c.NFilters*fanIn)
	c.KernelBias = make([]float64, c.NFilters)
	c.Dense = make([]float64, c.NFilters*c.NTasks)
	c.DenseBias = make([]float64, c.NTasks)
	glorot(rng, c.Kernel, fanIn, c.NFilters)
	glorot(rng, c.Dense, c.NFilters, c.NTasks)

	hist, err := train("CNN3D", c, Xd, Yd, Wd, c.TrainParams)
	if err != nil {
		return err
	}
	c.History = hist
	c.fitted = true
	return nil
}

func (c *CNN3D) parameters() [][]float64 {
	return [][]float64{c.Kernel, c.KernelBias, c.Dense, c.DenseBias}
}

// conv returns the pre-activation of filter f at output voxel (x, y, z).
func (c *CNN3D) conv(in []float64, f, x, y, z int) float64 {
	g := c.GridSize
	s := c.KernelBias[f]
	k := c.Kernel[f*c.Channels*27:]
	for ch := 0; ch < c.Channels; ch++ {
		base := ch * g * g * g
		for dx := 0; dx < kernelSize; dx++ {
			for dy := 0; dy < kernelSize; dy++ {
				row := base + (x+dx)*g*g + (y+dy)*g + z
				kk := k[ch*27+dx*9+dy*3:]
				s += kk[0]*in[row] + kk[1]*in[row+1] + kk[2]*in[row+2]
			}
		}
	}
	return s
}

// pool returns the globally averaged ReLU feature maps for one sample.
func (c *CNN3D) pool(in []float64) []float64 {
	o := c.outSize()
	vol := float64(o * o * o)
	pooled := make([]float64, c.NFilters)
	for f := 0; f < c.NFilters; f++ {
		for x := 0; x < o; x++ {
			for y := 0; y < o; y++ {
				for z := 0; z < o; z++ {
					if v := c.conv(in, f, x, y, z); v > 0 {
						pooled[f] += v
					}
				}
			}
		}
		pooled[f] /= vol
	}
	return pooled
}

func (c *CNN3D) head(pooled []float64, t int) float64 {
	z := c.DenseBias[t]
	for f, p := range pooled {
		z += p * c.Dense[f*c.NTasks+t]
	}
	return z
}

// sampleGrad accumulates the gradient of w*loss for one row into g.
func (c *CNN3D) sampleGrad(in, y, w []float64, g [][]float64) (loss, weight float64) {
	pooled := c.pool(in)
	dPool := make([]float64, c.NFilters)
	for t := 0; t < c.NTasks; t++ {
		if w[t] == 0 {
			continue
		}
		l, dz := c.Loss.eval(c.head(pooled, t), y[t])
		loss += w[t] * l
		weight += w[t]
		if g == nil {
			continue
		}
		dz *= w[t]
		g[3][t] += dz
		for f := range pooled {
			g[2][f*c.NTasks+t] += pooled[f] * dz
			dPool[f] += c.Dense[f*c.NTasks+t] * dz
		}
	}
	if g == nil || weight == 0 {
		return loss, weight
	}

	o, gs := c.outSize(), c.GridSize
	vol := float64(o * o * o)
	for f := 0; f < c.NFilters; f++ {
		if dPool[f] == 0 {
			continue
		}
		d := dPool[f] / vol
		gk := g[0][f*c.Channels*27:]
		for x := 0; x < o; x++ {
			for yy := 0; yy < o; yy++ {
				for z := 0; z < o; z++ {
					if c.conv(in, f, x, yy, z) <= 0 {
						continue
					}
					g[1][f] += d
					for ch := 0; ch < c.Channels; ch++ {
						base := ch * gs * gs * gs
						for dx := 0; dx < kernelSize; dx++ {
							for dy := 0; dy < kernelSize; dy++ {
								row := base + (x+dx)*gs*gs + (yy+dy)*gs + z
								kk := gk[ch*27+dx*9+dy*3:]
								kk[0] += d * in[row]
								kk[1] += d * in[row+1]
								kk[2] += d * in[row+2]
							}
						}
					}
				}
			}
		}
	}
	return loss, weight
}

func (c *CNN3D) lossGrad(X, Y, W *mat.Dense, rows []int, grads [][]float64, _ *rand.Rand) (float64, float64) {
	losses := make([]float64, len(rows))
	weights := make([]float64, len(rows))
	var perSample [][][]float64
	if grads != nil {
		perSample = make([][][]float64, len(rows))
	}

	parallel.ParallelizeWithThreshold(len(rows), 4, func(start, end int) {
		for i := start; i < end; i++ {
			r := rows[i]
			var g [][]float64
			if perSample != nil {
				g = make([][]float64, len(grads))
				for k := range grads {
					g[k] = make([]float64, len(grads[k]))
				}
				perSample[i] = g
			}
			losses[i], weights[i] = c.sampleGrad(X.RawRowView(r), Y.RawRowView(r), W.RawRowView(r), g)
		}
	})

	// summed in row order so the result does not depend on scheduling
	var loss, weight float64
	for i := range rows {
		loss += losses[i]
		weight += weights[i]
		for k := range grads {
			for j, v := range perSample[i][k] {
				grads[k][j] += v
			}
		}
	}
	return loss, weight
}

func (c *CNN3D) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !c.fitted {
		return nil, errors.NewNotFittedError("CNN3D", "Predict")
	}
	n, d := X.Dims()
	if d != c.inputSize() {
		return nil, errors.NewDimensionError("CNN3D.Predict", c.inputSize(), d, 1)
	}
	Xd := mat.DenseCopyOf(X)
	out := mat.NewDense(n, c.NTasks, nil)
	parallel.ParallelizeWithThreshold(n, 4, func(start, end int) {
		for i := start; i < end; i++ {
			pooled := c.pool(Xd.RawRowView(i))
			for t := 0; t < c.NTasks; t++ {
				out.Set(i, t, c.Loss.activate(c.head(pooled, t)))
			}
		}
	})
	return out, nil
}

func (c *CNN3D) ToWeights() *model.ModelWeights {
	mw := &model.ModelWeights{
		ModelType:       "CNN3D",
		Version:         model.WeightsVersion,
		Hyperparameters: c.hyperparameters(),
		IsFitted:        c.fitted,
		Metadata: map[string]interface{}{
			"grid_size": c.GridSize,
			"channels":  c.Channels,
			"n_tasks":   c.NTasks,
		},
	}
	mw.Hyperparameters["n_filters"] = c.NFilters
	if c.fitted {
		mw.Add("conv3d/kernel", []int{c.NFilters, c.Channels, kernelSize, kernelSize, kernelSize}, c.Kernel)
		mw.Add("conv3d/bias", []int{c.NFilters}, c.KernelBias)
		mw.Add("output/kernel", []int{c.NFilters, c.NTasks}, c.Dense)
		mw.Add("output/bias", []int{c.NTasks}, c.DenseBias)
	}
	return mw
}

func CNN3DFromWeights(mw *model.ModelWeights) (*CNN3D, error) {
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	if mw.ModelType != "CNN3D" {
		return nil, errors.NewSchemaError("CNN3D weights", "model_type")
	}
	c := &CNN3D{}
	var err error
	if c.TrainParams, err = trainParamsFrom(mw); err != nil {
		return nil, err
	}
	if c.NFilters, err = intParam(mw.Hyperparameters, "n_filters"); err != nil {
		return nil, err
	}
	if c.GridSize, err = intParam(mw.Metadata, "grid_size"); err != nil {
		return nil, err
	}
	if c.Channels, err = intParam(mw.Metadata, "channels"); err != nil {
		return nil, err
	}
	if c.NTasks, err = intParam(mw.Metadata, "n_tasks"); err != nil {
		return nil, err
	}
	if !mw.IsFitted {
		return c, nil
	}
	k := kernelSize
	tensors := []struct {
		dst   *[]float64
		name  string
		shape []int
	}{
		{&c.Kernel, "conv3d/kernel", []int{c.NFilters, c.Channels, k, k, k}},
		{&c.KernelBias, "conv3d/bias", []int{c.NFilters}},
		{&c.Dense, "output/kernel", []int{c.NFilters, c.NTasks}},
		{&c.DenseBias, "output/bias", []int{c.NTasks}},
	}
	for _, t := range tensors {
		data, err := mw.Tensor(t.name, t.shape...)
		if err != nil {
			return nil, err
		}
		*t.dst = append([]float64(nil), data...)
	}
	c.fitted = true
	return c, nil
}
