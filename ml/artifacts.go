package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const artifactVersion = 1

const (
	KindCategoryClassifier = "category_classifier"
	KindTextVectorizer     = "text_vectorizer"
	KindGoalRiskClassifier = "goal_risk_classifier"
	KindClusterBundle      = "cluster_bundle"
)

const (
	CategoryModelFile = "category_model.json"
	VectorizerFile    = "vectorizer.json"
	GoalRiskModelFile = "goal_risk_model.json"
	ClusterModelFile  = "cluster_model.json"
)

// GoalFeatureNames is the fixed column order of the goal risk feature row.
var GoalFeatureNames = [3]string{"avg_daily_spend", "days_remaining", "goal_amount"}

type artifactFile struct {
	Kind      string          `json:"kind"`
	Version   int             `json:"version"`
	TrainedAt time.Time       `json:"trained_at"`
	Payload   json.RawMessage `json:"payload"`
}

// StartupError reports an artifact that could not be loaded. The service must
// not start serving when one is returned.
type StartupError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("load %s artifact %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// SaveArtifact writes model as a versioned JSON envelope of the given kind.
func SaveArtifact(path, kind string, model any, trainedAt time.Time) error {
	payload, err := json.Marshal(model)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(artifactFile{
		Kind:      kind,
		Version:   artifactVersion,
		TrainedAt: trainedAt.UTC(),
		Payload:   payload,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadArtifact(path, kind string, model any) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return time.Time{}, fmt.Errorf("decode envelope: %w", err)
	}
	if file.Kind != kind {
		return time.Time{}, fmt.Errorf("artifact kind %q, want %q", file.Kind, kind)
	}
	if file.Version != artifactVersion {
		return time.Time{}, fmt.Errorf("unsupported artifact version %d", file.Version)
	}
	if len(file.Payload) == 0 {
		return time.Time{}, errors.New("empty payload")
	}
	if err := json.Unmarshal(file.Payload, model); err != nil {
		return time.Time{}, fmt.Errorf("decode payload: %w", err)
	}
	return file.TrainedAt, nil
}

// Artifacts is the immutable model set shared by every request.
type Artifacts struct {
	Vectorizer    *TfidfVectorizer
	CategoryModel *LogisticRegression
	GoalRiskModel *LogisticRegression
	ClusterModel  *ClusterModel
	TrainedAt     map[string]time.Time
	Dir           string
}

// LoadArtifacts loads all four artifacts from dir. Any failure is a *StartupError.
func LoadArtifacts(dir string) (*Artifacts, error) {
	a := &Artifacts{
		Vectorizer:    &TfidfVectorizer{},
		CategoryModel: &LogisticRegression{},
		GoalRiskModel: &LogisticRegression{},
		ClusterModel:  &ClusterModel{},
		TrainedAt:     make(map[string]time.Time, 4),
		Dir:           dir,
	}

	entries := []struct {
		kind     string
		file     string
		model    any
		validate func() error
	}{
		{KindTextVectorizer, VectorizerFile, a.Vectorizer, a.Vectorizer.validate},
		{KindCategoryClassifier, CategoryModelFile, a.CategoryModel, a.CategoryModel.validate},
		{KindGoalRiskClassifier, GoalRiskModelFile, a.GoalRiskModel, a.GoalRiskModel.validate},
		{KindClusterBundle, ClusterModelFile, a.ClusterModel, a.ClusterModel.validate},
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.file)
		trainedAt, err := loadArtifact(path, entry.kind, entry.model)
		if err == nil {
			err = entry.validate()
		}
		if err != nil {
			return nil, &StartupError{Artifact: entry.kind, Path: path, Err: err}
		}
		a.TrainedAt[entry.kind] = trainedAt
	}

	if a.Vectorizer.Features() != a.CategoryModel.Features() {
		return nil, &StartupError{
			Artifact: KindCategoryClassifier,
			Path:     filepath.Join(dir, CategoryModelFile),
			Err: fmt.Errorf("classifier expects %d features but vectorizer produces %d",
				a.CategoryModel.Features(), a.Vectorizer.Features()),
		}
	}
	if a.GoalRiskModel.Features() != len(GoalFeatureNames) {
		return nil, &StartupError{
			Artifact: KindGoalRiskClassifier,
			Path:     filepath.Join(dir, GoalRiskModelFile),
			Err:      fmt.Errorf("classifier expects %d features, want %d", a.GoalRiskModel.Features(), len(GoalFeatureNames)),
		}
	}
	return a, nil
}

type CategoryPrediction struct {
	Category   string
	Confidence float64
}

func (a *Artifacts) PredictCategory(text string) (CategoryPrediction, error) {
	row, err := a.Vectorizer.Transform(text)
	if err != nil {
		return CategoryPrediction{}, err
	}
	category, confidence, err := a.CategoryModel.Predict(row)
	if err != nil {
		return CategoryPrediction{}, err
	}
	return CategoryPrediction{Category: category, Confidence: confidence}, nil
}

type GoalFeatures struct {
	AvgDailySpend float64
	DaysRemaining int
	GoalAmount    float64
}

// Vector keeps the order used at training time: spend, days, goal.
func (g GoalFeatures) Vector() []float64 {
	return []float64{g.AvgDailySpend, float64(g.DaysRemaining), g.GoalAmount}
}

func (a *Artifacts) PredictGoalRisk(features GoalFeatures) (string, error) {
	risk, _, err := a.GoalRiskModel.Predict(features.Vector())
	return risk, err
}

func (a *Artifacts) AssignCluster(spending Spending) (ClusterAssignment, error) {
	return a.ClusterModel.Assign(spending)
}

type ArtifactInfo struct {
	Dir              string               `json:"dir"`
	TrainedAt        map[string]time.Time `json:"trained_at"`
	CategoryClasses  []string             `json:"category_classes"`
	VocabularySize   int                  `json:"vocabulary_size"`
	RiskClasses      []string             `json:"risk_classes"`
	RiskFeatures     []string             `json:"risk_features"`
	Clusters         int                  `json:"clusters"`
	ClusterLabels    []string             `json:"cluster_labels"`
	SpendingFeatures []string             `json:"spending_features"`
}

func (a *Artifacts) Info() ArtifactInfo {
	return ArtifactInfo{
		Dir:              a.Dir,
		TrainedAt:        a.TrainedAt,
		CategoryClasses:  a.CategoryModel.Classes,
		VocabularySize:   a.Vectorizer.Features(),
		RiskClasses:      a.GoalRiskModel.Classes,
		RiskFeatures:     GoalFeatureNames[:],
		Clusters:         a.ClusterModel.KMeans.Clusters(),
		ClusterLabels:    a.ClusterModel.Labels,
		SpendingFeatures: SpendingCategories[:],
	}
}
