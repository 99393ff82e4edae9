package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stock-predictor/internal/common"
	"stock-predictor/internal/dataset"
)

// Hyperparameters configure the random forest and its cross-validation
type Hyperparameters struct {
	Trees           int   `json:"trees" yaml:"trees"`
	MaxDepth        int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     int   `json:"max_features" yaml:"max_features"` // 0 means floor(sqrt(p))
	Seed            int64 `json:"seed" yaml:"seed"`
	Workers         int   `json:"workers" yaml:"workers"` // 0 means GOMAXPROCS
	Folds           int   `json:"folds" yaml:"folds"`
}

// DefaultHyperparameters returns 100 trees of depth at most 10, seed 42 and 5 folds.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Trees:           common.DefaultTrees,
		MaxDepth:        common.DefaultMaxDepth,
		MinSamplesSplit: common.DefaultMinSamplesSplit,
		Seed:            common.DefaultSeed,
		Folds:           common.DefaultFolds,
	}
}

// Validate checks the ranges of the hyperparameters
func (h Hyperparameters) Validate() error {
	if h.Trees < 1 || h.Trees > common.MaxTrees {
		return fmt.Errorf("trees must be between 1 and %d, got %d", common.MaxTrees, h.Trees)
	}
	if h.MaxDepth < 1 || h.MaxDepth > common.MaxTreeDepth {
		return fmt.Errorf("max depth must be between 1 and %d, got %d", common.MaxTreeDepth, h.MaxDepth)
	}
	if h.MinSamplesSplit < 2 {
		return fmt.Errorf("min samples split must be at least 2, got %d", h.MinSamplesSplit)
	}
	if h.MaxFeatures < 0 {
		return fmt.Errorf("max features must not be negative, got %d", h.MaxFeatures)
	}
	if h.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", h.Workers)
	}
	return nil
}

func (h Hyperparameters) featuresPerSplit(p int) int {
	m := h.MaxFeatures
	if m == 0 {
		m = int(math.Floor(math.Sqrt(float64(p))))
	}
	if m < 1 {
		m = 1
	}
	if m > p {
		m = p
	}
	return m
}

func (h Hyperparameters) workers() int {
	if h.Workers > 0 {
		return h.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// TrainingMetrics receives training-side observations
type TrainingMetrics interface {
	TrainingRunsInc()
	TrainingFailuresInc()
	TrainingDurationObserve(float64)
	TreesTrainedAdd(int)
	CVAccuracySet(float64)
	TrainingRowsSet(int)
}

// CVResult holds per-fold held-out accuracies
type CVResult struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
}

// TrainingResult is the outcome of Train
type TrainingResult struct {
	Forest   *Forest
	CV       CVResult
	Duration time.Duration
}

// Trainer fits random forests with a fixed set of hyperparameters
type Trainer struct {
	params  Hyperparameters
	metrics TrainingMetrics
}

// NewTrainer creates a trainer; metrics may be nil
func NewTrainer(params Hyperparameters, metrics TrainingMetrics) (*Trainer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hyperparameters: %w", err)
	}
	return &Trainer{params: params, metrics: metrics}, nil
}

// Params returns the trainer's hyperparameters
func (t *Trainer) Params() Hyperparameters {
	return t.params
}

// Train runs k-fold cross-validation on X and then fits the final forest on all of X.
// Nothing is written; on error or cancellation the partial work is discarded.
func (t *Trainer) Train(ctx context.Context, X [][]float64, y []bool) (*TrainingResult, error) {
	start := time.Now()
	if t.metrics != nil {
		t.metrics.TrainingRunsInc()
		t.metrics.TrainingRowsSet(len(X))
	}

	result, err := t.train(ctx, X, y)
	if err != nil {
		if t.metrics != nil {
			t.metrics.TrainingFailuresInc()
		}
		return nil, err
	}

	result.Duration = time.Since(start)
	if t.metrics != nil {
		t.metrics.TrainingDurationObserve(result.Duration.Seconds())
		t.metrics.CVAccuracySet(result.CV.Mean)
	}

	log.Info().
		Int("rows", len(X)).
		Int("trees", len(result.Forest.Trees)).
		Float64("cv_mean", result.CV.Mean).
		Dur("duration", result.Duration).
		Msg("Training complete")

	return result, nil
}

func (t *Trainer) train(ctx context.Context, X [][]float64, y []bool) (*TrainingResult, error) {
	cv, err := t.CrossValidate(ctx, X, y)
	if err != nil {
		return nil, fmt.Errorf("cross-validation: %w", err)
	}

	forest, err := t.Fit(ctx, X, y)
	if err != nil {
		return nil, fmt.Errorf("final fit: %w", err)
	}

	return &TrainingResult{Forest: forest, CV: cv}, nil
}

// Fit grows the forest on every row of X, with trees built in parallel.
func (t *Trainer) Fit(ctx context.Context, X [][]float64, y []bool) (*Forest, error) {
	if err := checkTrainingSet(X, y); err != nil {
		return nil, err
	}
	rows := make([]int, len(X))
	for i := range rows {
		rows[i] = i
	}
	forest, err := t.fitRows(ctx, X, y, rows, t.params.workers())
	if err != nil {
		return nil, err
	}
	if t.metrics != nil {
		t.metrics.TreesTrainedAdd(len(forest.Trees))
	}
	return forest, nil
}

// CrossValidate splits X into k contiguous folds (the first n mod k folds get
// one extra row), fits on k-1 folds and scores accuracy on the held-out fold.
// Folds run in parallel.
func (t *Trainer) CrossValidate(ctx context.Context, X [][]float64, y []bool) (CVResult, error) {
	k := t.params.Folds
	if k < common.MinFolds {
		return CVResult{}, fmt.Errorf("%w: cross-validation needs at least %d folds, got %d", dataset.ErrInsufficientData, common.MinFolds, k)
	}
	if k > common.MaxFolds {
		return CVResult{}, fmt.Errorf("cross-validation supports at most %d folds, got %d", common.MaxFolds, k)
	}
	if err := checkTrainingSet(X, y); err != nil {
		return CVResult{}, err
	}
	n := len(X)
	if n < k {
		return CVResult{}, fmt.Errorf("%w: %d rows cannot be split into %d folds", dataset.ErrInsufficientData, n, k)
	}

	bounds := foldBounds(n, k)
	scores := make([]float64, k)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.params.workers())
	for fold := 0; fold < k; fold++ {
		fold := fold // per-iteration copy; go directive is 1.21
		g.Go(func() error {
			lo, hi := bounds[fold], bounds[fold+1]
			train := make([]int, 0, n-(hi-lo))
			for i := 0; i < n; i++ {
				if i < lo || i >= hi {
					train = append(train, i)
				}
			}

			forest, err := t.fitRows(gctx, X, y, train, 1)
			if err != nil {
				return fmt.Errorf("fold %d: %w", fold, err)
			}

			correct := 0
			for i := lo; i < hi; i++ {
				if forest.Predict(X[i]) == y[i] {
					correct++
				}
			}
			scores[fold] = float64(correct) / float64(hi-lo)

			log.Debug().
				Int("fold", fold).
				Int("train_rows", len(train)).
				Int("test_rows", hi-lo).
				Float64("accuracy", scores[fold]).
				Msg("Fold scored")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CVResult{}, err
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	result := CVResult{Scores: scores, Mean: sum / float64(k)}

	log.Info().
		Floats64("scores", result.Scores).
		Float64("mean", result.Mean).
		Msg("Cross-validation complete")

	return result, nil
}

// fitRows grows params.Trees trees on bootstrap resamples of rows.
func (t *Trainer) fitRows(ctx context.Context, X [][]float64, y []bool, rows []int, workers int) (*Forest, error) {
	p := len(X[rows[0]])
	trees := make([]*Node, t.params.Trees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		i := i // per-iteration copy; go directive is 1.21
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(treeSeed(t.params.Seed, i)))
			sample := make([]int, len(rows))
			for j := range sample {
				sample[j] = rows[rng.Intn(len(rows))]
			}

			b := &treeBuilder{
				X:               X,
				y:               y,
				maxDepth:        t.params.MaxDepth,
				minSamplesSplit: t.params.MinSamplesSplit,
				maxFeatures:     t.params.featuresPerSplit(p),
				rng:             rng,
			}
			trees[i] = b.grow(sample, 0)

			log.Debug().
				Int("tree", i).
				Int("depth", trees[i].Depth()).
				Int("leaves", trees[i].Leaves()).
				Msg("Tree grown")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{NumFeatures: p, Trees: trees}, nil
}

func checkTrainingSet(X [][]float64, y []bool) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: no training rows", dataset.ErrInsufficientData)
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrFeatureMismatch, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("%w: rows have no features", ErrFeatureMismatch)
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, expected %d", ErrFeatureMismatch, i, len(row), width)
		}
	}
	return nil
}

// foldBounds returns k+1 offsets delimiting k contiguous folds over n rows.
func foldBounds(n, k int) []int {
	bounds := make([]int, k+1)
	size, extra := n/k, n%k
	for f := 0; f < k; f++ {
		bounds[f+1] = bounds[f] + size
		if f < extra {
			bounds[f+1]++
		}
	}
	return bounds
}

// treeSeed derives an independent seed for tree i so that a tree's random
// stream does not depend on scheduling order.
func treeSeed(seed int64, i int) int64 {
	z := uint64(seed) + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
