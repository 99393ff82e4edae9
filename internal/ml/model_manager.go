package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"stock-predictor/internal/common"
)

const versionsFileName = "model_versions.json"

// ModelVersion represents a versioned model bundle
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	RunID     string       `json:"run_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains performance metrics for a model
type ModelMetrics struct {
	CVMean          float64 `json:"cv_mean"`
	TestAccuracy    float64 `json:"test_accuracy"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	TrainingSamples int     `json:"training_samples"`
}

// ModelManager handles bundle versioning and rollback. Versions are kept
// newest first in model_versions.json inside modelsDir.
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
}

// NewModelManager creates a new model manager
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, versionsFileName),
		versions:     make([]ModelVersion, 0),
	}

	// Load existing versions if available
	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Str("file", mm.versionsFile).Msg("Failed to load model versions, starting fresh")
		mm.versions = make([]ModelVersion, 0)
	}

	return mm, nil
}

// ModelsDir returns the directory the manager stores bundles in
func (mm *ModelManager) ModelsDir() string {
	return mm.modelsDir
}

// BundlePath returns the conventional bundle path for a run in the models directory
func (mm *ModelManager) BundlePath(runID string) string {
	return filepath.Join(mm.modelsDir, fmt.Sprintf("model-%s.json", runID))
}

// AddVersion registers a saved bundle as a new, inactive version
func (mm *ModelManager) AddVersion(bundlePath, runID string, metrics ModelMetrics) (ModelVersion, error) {
	now := time.Now()
	version := ModelVersion{
		Version:   now.Format("20060102-150405"),
		Path:      bundlePath,
		RunID:     runID,
		CreatedAt: now,
		Metrics:   metrics,
	}
	if len(runID) >= 8 {
		version.Version += "-" + runID[:8]
	}
	for _, v := range mm.versions {
		if v.Version == version.Version {
			return ModelVersion{}, fmt.Errorf("version %s already exists", version.Version)
		}
	}

	updated := append(append(make([]ModelVersion, 0, len(mm.versions)+1), mm.versions...), version)

	// Sort versions by creation time, newest first
	sort.SliceStable(updated, func(i, j int) bool {
		return updated[i].CreatedAt.After(updated[j].CreatedAt)
	})

	if err := mm.commit(updated); err != nil {
		return ModelVersion{}, err
	}
	return version, nil
}

// ActivateVersion activates a specific model version
func (mm *ModelManager) ActivateVersion(version string) error {
	found := false
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("version %s not found", version)
	}

	updated := append(make([]ModelVersion, 0, len(mm.versions)), mm.versions...)
	for i := range updated {
		updated[i].IsActive = updated[i].Version == version
	}
	if err := mm.commit(updated); err != nil {
		return err
	}

	log.Info().Str("version", version).Msg("Model version activated")
	return nil
}

// Rollback activates the version registered just before the active one
func (mm *ModelManager) Rollback() error {
	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}

	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}

	if currentIdx+1 < len(mm.versions) {
		return mm.ActivateVersion(mm.versions[currentIdx+1].Version)
	}

	return fmt.Errorf("no previous version available")
}

// GetCurrentVersion returns the currently active version, or nil
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	for i := range mm.versions {
		if mm.versions[i].IsActive {
			v := mm.versions[i]
			return &v
		}
	}
	return nil
}

// ListVersions returns all model versions, newest first
func (mm *ModelManager) ListVersions() []ModelVersion {
	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

// loadVersions loads model versions from file
func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &mm.versions)
}

// commit persists versions and only then makes them the in-memory state
func (mm *ModelManager) commit(versions []ModelVersion) error {
	data, err := json.MarshalIndent(versions, "", "  ")
	if err != nil {
		return err
	}
	if err := common.WriteFileAtomic(mm.versionsFile, data, 0o600); err != nil {
		return fmt.Errorf("save model versions: %w", err)
	}
	mm.versions = versions
	return nil
}
