package ml

import "sync"

// MockMetrics implements MetricsInterface and TrainingMetrics for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	latencySum       float64
	latencyCount     int
	accuracy         float64
	modelAge         float64
	predictionScores []float64

	trainingRuns     int
	trainingFailures int
	trainingDuration float64
	treesTrained     int
	cvAccuracy       float64
	trainingRows     int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLAccuracyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) TrainingRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingRuns++
}

func (m *MockMetrics) TrainingFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingFailures++
}

func (m *MockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingDuration += v
}

func (m *MockMetrics) TreesTrainedAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.treesTrained += n
}

func (m *MockMetrics) CVAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cvAccuracy = v
}

func (m *MockMetrics) TrainingRowsSet(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingRows = n
}
