package trainer

// SGDClassifier is a multiclass linear classifier trained with stochastic
// gradient descent on a hinge loss, one-vs-all. It is deliberately small:
// the pipeline needs a learner that supports an initial full fit followed
// by incremental partial fits with a stable label universe, and nothing
// more. The label set only ever grows; supplying the full current label
// universe on every partial fit keeps class indices stable.
type SGDClassifier struct {
	classes  []string
	classIdx map[string]int
	weights  []map[int]float64
	bias     []float64

	learningRate float64
	fitEpochs    int
}

// NewSGDClassifier creates an untrained classifier
func NewSGDClassifier() *SGDClassifier {
	return &SGDClassifier{
		classIdx:     make(map[string]int),
		learningRate: 0.01,
		fitEpochs:    5,
	}
}

// Classes returns the current label universe in index order
func (m *SGDClassifier) Classes() []string {
	out := make([]string, len(m.classes))
	copy(out, m.classes)
	return out
}

// EnsureClasses extends the label universe with any unseen labels,
// initializing their weights to zero. Existing class indices are never
// disturbed.
func (m *SGDClassifier) EnsureClasses(labels []string) {
	for _, label := range labels {
		if _, ok := m.classIdx[label]; ok {
			continue
		}
		m.classIdx[label] = len(m.classes)
		m.classes = append(m.classes, label)
		m.weights = append(m.weights, make(map[int]float64))
		m.bias = append(m.bias, 0)
	}
}

// Fit performs the initial full fit: several passes over the batch
func (m *SGDClassifier) Fit(x []map[int]float64, y []string) {
	m.EnsureClasses(y)
	for epoch := 0; epoch < m.fitEpochs; epoch++ {
		for i := range x {
			m.trainOne(x[i], y[i])
		}
	}
}

// PartialFit performs one incremental pass over the batch. The caller
// supplies the full current label universe so the class set stays stable
// across updates.
func (m *SGDClassifier) PartialFit(x []map[int]float64, y []string, classes []string) {
	m.EnsureClasses(classes)
	m.EnsureClasses(y)
	for i := range x {
		m.trainOne(x[i], y[i])
	}
}

// trainOne applies one hinge-loss SGD step for a single sample
func (m *SGDClassifier) trainOne(x map[int]float64, label string) {
	target := m.classIdx[label]
	for c := range m.classes {
		sign := -1.0
		if c == target {
			sign = 1.0
		}
		if sign*m.score(c, x) >= 1 {
			continue
		}
		w := m.weights[c]
		for idx, val := range x {
			w[idx] += m.learningRate * sign * val
		}
		m.bias[c] += m.learningRate * sign
	}
}

// Predict returns the highest-scoring label for the sample. Ties resolve
// to the lower class index, which is deterministic for a fixed fit order.
func (m *SGDClassifier) Predict(x map[int]float64) (string, bool) {
	if len(m.classes) == 0 {
		return "", false
	}
	best := 0
	bestScore := m.score(0, x)
	for c := 1; c < len(m.classes); c++ {
		if s := m.score(c, x); s > bestScore {
			best = c
			bestScore = s
		}
	}
	return m.classes[best], true
}

func (m *SGDClassifier) score(class int, x map[int]float64) float64 {
	s := m.bias[class]
	w := m.weights[class]
	for idx, val := range x {
		s += w[idx] * val
	}
	return s
}

// clone returns an independent copy, used when publishing a serving snapshot
func (m *SGDClassifier) clone() *SGDClassifier {
	c := &SGDClassifier{
		classes:      make([]string, len(m.classes)),
		classIdx:     make(map[string]int, len(m.classIdx)),
		weights:      make([]map[int]float64, len(m.weights)),
		bias:         make([]float64, len(m.bias)),
		learningRate: m.learningRate,
		fitEpochs:    m.fitEpochs,
	}
	copy(c.classes, m.classes)
	copy(c.bias, m.bias)
	for k, v := range m.classIdx {
		c.classIdx[k] = v
	}
	for i, w := range m.weights {
		cw := make(map[int]float64, len(w))
		for idx, val := range w {
			cw[idx] = val
		}
		c.weights[i] = cw
	}
	return c
}
