package metrics

// MetricsWrapper adapts Metrics to the small method sets the trainer and
// predictor depend on, so those packages never import Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

// MLAccuracyObserve records a held-out accuracy in both the histogram and the latest-run gauge.
func (w *MetricsWrapper) MLAccuracyObserve(v float64) {
	w.m.MLAccuracy.Observe(v)
	w.m.TestAccuracy.Set(v)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) {
	w.m.MLPredictionScores.Observe(v)
}

func (w *MetricsWrapper) TrainingRunsInc() {
	w.m.TrainingRuns.Inc()
}

func (w *MetricsWrapper) TrainingFailuresInc() {
	w.m.TrainingFailures.Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(v float64) {
	w.m.TrainingDuration.Observe(v)
}

func (w *MetricsWrapper) TreesTrainedAdd(n int) {
	w.m.TreesTrained.Add(float64(n))
}

func (w *MetricsWrapper) CVAccuracySet(v float64) {
	w.m.CVAccuracy.Set(v)
}

func (w *MetricsWrapper) TrainingRowsSet(n int) {
	w.m.TrainingRows.Set(float64(n))
}

func (w *MetricsWrapper) BundleSavedInc() {
	w.m.BundlesSaved.Inc()
}
