package neural_network

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// MLP is a one-hidden-layer perceptron with a ReLU hidden layer shared by
// all tasks and one output unit per task. With a single task it is the
// singletask network; with several the hidden layer is shared and the loss
// is masked per task.
type MLP struct {
	TrainParams
	NHidden int
	Dropout float64

	NFeatures int
	NTasks    int
	// row-major: W1 is NFeatures×NHidden, W2 is NHidden×NTasks
	W1, B1, W2, B2 []float64

	History History
	fitted  bool
}

// NewMLP returns an MLP. Use WithLoss(BinaryCrossentropy) for
// classification; the default loss is mean squared error.
func NewMLP(opts ...Option) *MLP {
	c := newConfig(MeanSquaredError, opts)
	return &MLP{TrainParams: c.TrainParams, NHidden: c.nHidden, Dropout: c.dropout}
}

func (m *MLP) IsFitted() bool { return m.fitted }

// Fit trains on X (n×d) and Y (n×T). W (n×T) holds per-entry weights and
// may be nil, in which case every non-NaN label has weight 1.
func (m *MLP) Fit(X, Y, W mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLP.Fit")

	if err := m.validate(); err != nil {
		return err
	}
	if m.NHidden < 1 {
		return errors.NewValidationError("n_hidden", "must be at least 1", m.NHidden)
	}
	if m.Dropout < 0 || m.Dropout >= 1 {
		return errors.NewValidationError("dropout", "must be in [0, 1)", m.Dropout)
	}
	Xd, Yd, Wd, err := checkTraining("MLP.Fit", X, Y, W)
	if err != nil {
		return err
	}
	_, d := Xd.Dims()
	_, t := Yd.Dims()

	rng := rand.New(rand.NewPCG(m.RandomState, 1))
	m.NFeatures, m.NTasks = d, t
	m.W1 = make([]float64, d*m.NHidden)
	m.B1 = make([]float64, m.NHidden)
	m.W2 = make([]float64, m.NHidden*t)
	m.B2 = make([]float64, t)
	glorot(rng, m.W1, d, m.NHidden)
	glorot(rng, m.W2, m.NHidden, t)

	hist, err := train("MLP", m, Xd, Yd, Wd, m.TrainParams)
	if err != nil {
		return err
	}
	m.History = hist
	m.fitted = true
	return nil
}

func (m *MLP) parameters() [][]float64 {
	return [][]float64{m.W1, m.B1, m.W2, m.B2}
}

// forward computes the hidden pre-activations, the (dropped-out) hidden
// activations with the dropout mask, and the output pre-activations.
func (m *MLP) forward(Xb *mat.Dense, rng *rand.Rand) (pre, h, mask, z *mat.Dense) {
	b, _ := Xb.Dims()
	pre = mat.NewDense(b, m.NHidden, nil)
	pre.Mul(Xb, mat.NewDense(m.NFeatures, m.NHidden, m.W1))

	h = mat.NewDense(b, m.NHidden, nil)
	keep := 1 - m.Dropout
	if rng != nil && m.Dropout > 0 {
		mask = mat.NewDense(b, m.NHidden, nil)
	}
	for i := 0; i < b; i++ {
		for j := 0; j < m.NHidden; j++ {
			v := pre.At(i, j) + m.B1[j]
			pre.Set(i, j, v)
			if v <= 0 {
				continue
			}
			if mask != nil {
				if rng.Float64() >= keep {
					continue
				}
				mask.Set(i, j, 1/keep)
				v /= keep
			}
			h.Set(i, j, v)
		}
	}

	z = mat.NewDense(b, m.NTasks, nil)
	z.Mul(h, mat.NewDense(m.NHidden, m.NTasks, m.W2))
	for i := 0; i < b; i++ {
		for t := 0; t < m.NTasks; t++ {
			z.Set(i, t, z.At(i, t)+m.B2[t])
		}
	}
	return pre, h, mask, z
}

func (m *MLP) lossGrad(X, Y, W *mat.Dense, rows []int, grads [][]float64, rng *rand.Rand) (float64, float64) {
	Xb := gatherRows(X, rows)
	pre, h, mask, z := m.forward(Xb, rng)
	if grads == nil {
		mask = nil
	}

	b := len(rows)
	dz := mat.NewDense(b, m.NTasks, nil)
	var loss, weight float64
	for i, r := range rows {
		for t := 0; t < m.NTasks; t++ {
			w := W.At(r, t)
			if w == 0 {
				continue
			}
			l, g := m.Loss.eval(z.At(i, t), Y.At(r, t))
			loss += w * l
			weight += w
			dz.Set(i, t, w*g)
		}
	}
	if grads == nil {
		return loss, weight
	}

	gW2 := mat.NewDense(m.NHidden, m.NTasks, grads[2])
	gW2.Mul(h.T(), dz)
	colSums(grads[3], dz)

	dh := mat.NewDense(b, m.NHidden, nil)
	dh.Mul(dz, mat.NewDense(m.NHidden, m.NTasks, m.W2).T())
	for i := 0; i < b; i++ {
		for j := 0; j < m.NHidden; j++ {
			if pre.At(i, j) <= 0 {
				dh.Set(i, j, 0)
			} else if mask != nil {
				dh.Set(i, j, dh.At(i, j)*mask.At(i, j))
			}
		}
	}
	gW1 := mat.NewDense(m.NFeatures, m.NHidden, grads[0])
	gW1.Mul(Xb.T(), dh)
	colSums(grads[1], dh)
	return loss, weight
}

// Predict returns an n×NTasks matrix of outputs: probabilities for a
// binary cross-entropy head, raw values otherwise.
func (m *MLP) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.fitted {
		return nil, errors.NewNotFittedError("MLP", "Predict")
	}
	n, d := X.Dims()
	if d != m.NFeatures {
		return nil, errors.NewDimensionError("MLP.Predict", m.NFeatures, d, 1)
	}
	_, _, _, z := m.forward(mat.DenseCopyOf(X), nil)
	for i := 0; i < n; i++ {
		for t := 0; t < m.NTasks; t++ {
			z.Set(i, t, m.Loss.activate(z.At(i, t)))
		}
	}
	return z, nil
}

// ToWeights exports the fitted parameters as named tensors.
func (m *MLP) ToWeights() *model.ModelWeights {
	mw := &model.ModelWeights{
		ModelType:       "MLP",
		Version:         model.WeightsVersion,
		Hyperparameters: m.hyperparameters(),
		IsFitted:        m.fitted,
	}
	mw.Hyperparameters["n_hidden"] = m.NHidden
	mw.Hyperparameters["dropout"] = m.Dropout
	mw.Metadata = map[string]interface{}{
		"n_features": m.NFeatures,
		"n_tasks":    m.NTasks,
	}
	if m.fitted {
		mw.Add("hidden/kernel", []int{m.NFeatures, m.NHidden}, m.W1)
		mw.Add("hidden/bias", []int{m.NHidden}, m.B1)
		mw.Add("output/kernel", []int{m.NHidden, m.NTasks}, m.W2)
		mw.Add("output/bias", []int{m.NTasks}, m.B2)
	}
	return mw
}

// MLPFromWeights restores a network written by ToWeights.
func MLPFromWeights(mw *model.ModelWeights) (*MLP, error) {
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	if mw.ModelType != "MLP" {
		return nil, errors.NewSchemaError("MLP weights", "model_type")
	}
	m := &MLP{}
	var err error
	if m.TrainParams, err = trainParamsFrom(mw); err != nil {
		return nil, err
	}
	if m.NHidden, err = intParam(mw.Hyperparameters, "n_hidden"); err != nil {
		return nil, err
	}
	if m.Dropout, err = floatParam(mw.Hyperparameters, "dropout"); err != nil {
		return nil, err
	}
	if m.NFeatures, err = intParam(mw.Metadata, "n_features"); err != nil {
		return nil, err
	}
	if m.NTasks, err = intParam(mw.Metadata, "n_tasks"); err != nil {
		return nil, err
	}
	if !mw.IsFitted {
		return m, nil
	}
	tensors := []struct {
		dst   *[]float64
		name  string
		shape []int
	}{
		{&m.W1, "hidden/kernel", []int{m.NFeatures, m.NHidden}},
		{&m.B1, "hidden/bias", []int{m.NHidden}},
		{&m.W2, "output/kernel", []int{m.NHidden, m.NTasks}},
		{&m.B2, "output/bias", []int{m.NTasks}},
	}
	for _, t := range tensors {
		data, err := mw.Tensor(t.name, t.shape...)
		if err != nil {
			return nil, err
		}
		*t.dst = append([]float64(nil), data...)
	}
	m.fitted = true
	return m, nil
}
