package trainer

// Metrics summarizes one model update, computed over the training batch
// that was just used. This is an online-monitoring signal, not a
// generalization estimate: there is no held-out set.
type Metrics struct {
	Samples     int     `json:"samples"`
	Accuracy    float64 `json:"accuracy"`
	MacroRecall float64 `json:"macro_recall"`
	MacroF1     float64 `json:"macro_f1"`
}

// Evaluate computes accuracy, macro-average recall, and macro-average F1
// for the given predictions against the given label universe. Labels with
// an undefined score (no true samples, or no true and no predicted
// samples) contribute 1.0, matching the zero-division convention the
// historical pipeline logged its metrics with.
func Evaluate(yTrue, yPred []string, labels []string) Metrics {
	m := Metrics{Samples: len(yTrue)}
	if len(yTrue) == 0 {
		return m
	}

	correct := 0
	tp := make(map[string]int, len(labels))
	fp := make(map[string]int, len(labels))
	fn := make(map[string]int, len(labels))

	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
			tp[yTrue[i]]++
		} else {
			fn[yTrue[i]]++
			fp[yPred[i]]++
		}
	}
	m.Accuracy = float64(correct) / float64(len(yTrue))

	var recallSum, f1Sum float64
	for _, label := range labels {
		t, p, n := tp[label], fp[label], fn[label]

		recall := 1.0
		if t+n > 0 {
			recall = float64(t) / float64(t+n)
		}
		recallSum += recall

		precision := 1.0
		if t+p > 0 {
			precision = float64(t) / float64(t+p)
		}

		f1 := 1.0
		if t+p+n > 0 {
			f1 = 0
			if precision+recall > 0 {
				f1 = 2 * precision * recall / (precision + recall)
			}
		}
		f1Sum += f1
	}

	if len(labels) > 0 {
		m.MacroRecall = recallSum / float64(len(labels))
		m.MacroF1 = f1Sum / float64(len(labels))
	}
	return m
}
