package ml

import (
	"fmt"
	"strings"

	"stock-predictor/internal/common"
)

// Classifier is anything that assigns a binary class to a standardized feature vector
type Classifier interface {
	Predict(x []float64) bool
}

// ClassMetrics are per-class precision, recall, F1 and support
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// EvaluationReport summarizes a classifier on a labeled set.
// Classes[0] is the negative class and Classes[1] the positive class;
// Confusion[actual][predicted] uses the same indexing.
type EvaluationReport struct {
	Accuracy    float64         `json:"accuracy"`
	Classes     [2]ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics    `json:"macro_avg"`
	WeightedAvg ClassMetrics    `json:"weighted_avg"`
	Confusion   [2][2]int       `json:"confusion"`
	Total       int             `json:"total"`
}

// Evaluate scores model on X against y. Classes absent from y or from the
// predictions report zeros.
func Evaluate(model Classifier, X [][]float64, y []bool) (EvaluationReport, error) {
	if model == nil {
		return EvaluationReport{}, ErrNotFitted
	}
	if v, ok := model.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return EvaluationReport{}, err
		}
	}
	if len(X) != len(y) {
		return EvaluationReport{}, fmt.Errorf("%w: %d rows but %d labels", ErrFeatureMismatch, len(X), len(y))
	}

	var r EvaluationReport
	for i, x := range X {
		r.Confusion[classIndex(y[i])][classIndex(model.Predict(x))]++
	}
	r.Total = len(X)
	if r.Total == 0 {
		return r, nil
	}

	correct := r.Confusion[0][0] + r.Confusion[1][1]
	r.Accuracy = float64(correct) / float64(r.Total)

	for c := 0; c < 2; c++ {
		tp := r.Confusion[c][c]
		predicted := r.Confusion[0][c] + r.Confusion[1][c]
		support := r.Confusion[c][0] + r.Confusion[c][1]

		m := ClassMetrics{Support: support}
		m.Precision = ratio(tp, predicted)
		m.Recall = ratio(tp, support)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[c] = m
	}

	for _, m := range r.Classes {
		r.MacroAvg.Precision += m.Precision / 2
		r.MacroAvg.Recall += m.Recall / 2
		r.MacroAvg.F1 += m.F1 / 2
		w := float64(m.Support) / float64(r.Total)
		r.WeightedAvg.Precision += m.Precision * w
		r.WeightedAvg.Recall += m.Recall * w
		r.WeightedAvg.F1 += m.F1 * w
	}
	r.MacroAvg.Support = r.Total
	r.WeightedAvg.Support = r.Total

	return r, nil
}

// String renders the report as a classification-report table.
func (r EvaluationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	b.WriteString("\n")
	names := [2]string{common.LabelUnfavorable, common.LabelFavorable}
	for c, m := range r.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", names[c], m.Precision, m.Recall, m.F1, m.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", "weighted avg", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	return b.String()
}

func classIndex(positive bool) int {
	if positive {
		return 1
	}
	return 0
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
