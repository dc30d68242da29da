// Package trainer fits the three spendwise models from CSV data and writes the
// artifacts the service loads at startup.
package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"spendwise/db"
	"spendwise/ml"
)

const (
	TaskCategory = "category"
	TaskGoalRisk = "goal_risk"
	TaskCluster  = "cluster"
	TaskAll      = "all"
)

type Config struct {
	DataDir   string
	ModelDir  string
	Seed      int64
	TestRatio float64
	Clusters  int
}

func DefaultConfig() Config {
	return Config{
		DataDir:   "data",
		ModelDir:  "models",
		Seed:      42,
		TestRatio: 0.2,
		Clusters:  5,
	}
}

// Recorder stores one row per finished training run. *db.Store implements it.
type Recorder interface {
	SaveTrainingRun(ctx context.Context, run db.TrainingRun) error
}

type Report struct {
	Task       string         `json:"task"`
	Samples    int            `json:"samples"`
	Accuracy   float64        `json:"accuracy"`
	Details    map[string]any `json:"details"`
	Artifacts  []string       `json:"artifacts"`
	TrainedAt  time.Time      `json:"trained_at"`
	Iterations int            `json:"iterations"`
}

type Trainer struct {
	config   Config
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// New returns a Trainer. logger and recorder may be nil.
func New(config Config, logger *zap.Logger, recorder Recorder) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Clusters <= 0 {
		config.Clusters = DefaultConfig().Clusters
	}
	return &Trainer{
		config:   config,
		logger:   logger,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run trains one task, or all of them in a fixed order when task is "all".
func (t *Trainer) Run(ctx context.Context, task string) ([]Report, error) {
	steps := map[string]func(context.Context) (Report, error){
		TaskCategory: t.TrainCategory,
		TaskGoalRisk: t.TrainGoalRisk,
		TaskCluster:  t.TrainCluster,
	}

	var tasks []string
	switch task {
	case TaskAll:
		tasks = []string{TaskCategory, TaskGoalRisk, TaskCluster}
	case TaskCategory, TaskGoalRisk, TaskCluster:
		tasks = []string{task}
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}

	if err := os.MkdirAll(t.config.ModelDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}

	reports := make([]Report, 0, len(tasks))
	for _, name := range tasks {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := steps[name](ctx)
		if err != nil {
			return reports, fmt.Errorf("train %s: %w", name, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// TrainCategory fits the TF-IDF vectorizer on every text, then trains the
// classifier on a seeded split and scores it on the held-out rows.
func (t *Trainer) TrainCategory(ctx context.Context) (Report, error) {
	ds, err := loadTextDataset(filepath.Join(t.config.DataDir, CategoryDataFile))
	if err != nil {
		return Report{}, err
	}

	vectorizer := ml.NewTfidfVectorizer(1, 2)
	rows, err := vectorizer.FitTransform(ds.texts)
	if err != nil {
		return Report{}, fmt.Errorf("fit vectorizer: %w", err)
	}

	trainIdx, testIdx := ml.TrainTestSplit(len(rows), t.config.TestRatio, t.config.Seed)
	trainX, trainY := pick(rows, ds.labels, trainIdx)
	testX, testY := pick(rows, ds.labels, testIdx)

	config := ml.DefaultLogisticConfig()
	config.MaxIter = 1000
	model := ml.NewLogisticRegression(config)
	if err := model.Fit(trainX, trainY); err != nil {
		return Report{}, fmt.Errorf("fit classifier: %w", err)
	}

	predicted := make([]string, len(testX))
	for i, row := range testX {
		label, _, err := model.Predict(row)
		if err != nil {
			return Report{}, err
		}
		predicted[i] = label
	}
	accuracy := ml.Accuracy(testY, predicted)
	confusion := ml.ConfusionMatrix(testY, predicted, model.Classes)

	t.logger.Info("category model evaluated",
		zap.Float64("accuracy", accuracy),
		zap.Int("train", len(trainX)),
		zap.Int("test", len(testX)),
		zap.Strings("classes", model.Classes),
		zap.Any("confusion_matrix", confusion),
		zap.Int("vocabulary", vectorizer.Features()),
		zap.Int("iterations", model.Iter))

	trainedAt := t.now()
	artifacts := []string{
		filepath.Join(t.config.ModelDir, ml.CategoryModelFile),
		filepath.Join(t.config.ModelDir, ml.VectorizerFile),
	}
	if err := ml.SaveArtifact(artifacts[0], ml.KindCategoryClassifier, model, trainedAt); err != nil {
		return Report{}, err
	}
	if err := ml.SaveArtifact(artifacts[1], ml.KindTextVectorizer, vectorizer, trainedAt); err != nil {
		return Report{}, err
	}

	report := Report{
		Task:     TaskCategory,
		Samples:  len(rows),
		Accuracy: accuracy,
		Details: map[string]any{
			"classes":          model.Classes,
			"confusion_matrix": confusion,
			"vocabulary_size":  vectorizer.Features(),
			"test_size":        len(testX),
		},
		Artifacts:  artifacts,
		TrainedAt:  trainedAt,
		Iterations: model.Iter,
	}
	t.record(ctx, report)
	return report, nil
}

// TrainGoalRisk fits on every row; the accuracy it reports is training accuracy.
func (t *Trainer) TrainGoalRisk(ctx context.Context) (Report, error) {
	ds, err := loadTabularDataset(filepath.Join(t.config.DataDir, GoalRiskDataFile), ml.GoalFeatureNames[:], "risk")
	if err != nil {
		return Report{}, err
	}

	config := ml.DefaultLogisticConfig()
	config.Standardize = true
	model := ml.NewLogisticRegression(config)
	if err := model.Fit(ds.features, ds.labels); err != nil {
		return Report{}, fmt.Errorf("fit classifier: %w", err)
	}

	predicted := make([]string, len(ds.features))
	for i, row := range ds.features {
		label, _, err := model.Predict(row)
		if err != nil {
			return Report{}, err
		}
		predicted[i] = label
	}
	accuracy := ml.Accuracy(ds.labels, predicted)
	t.logger.Info("goal risk model trained",
		zap.Float64("training_accuracy", accuracy),
		zap.Int("samples", len(ds.features)),
		zap.Strings("classes", model.Classes),
		zap.Int("iterations", model.Iter))

	trainedAt := t.now()
	path := filepath.Join(t.config.ModelDir, ml.GoalRiskModelFile)
	if err := ml.SaveArtifact(path, ml.KindGoalRiskClassifier, model, trainedAt); err != nil {
		return Report{}, err
	}

	report := Report{
		Task:     TaskGoalRisk,
		Samples:  len(ds.features),
		Accuracy: accuracy,
		Details: map[string]any{
			"classes":  model.Classes,
			"features": ml.GoalFeatureNames[:],
		},
		Artifacts:  []string{path},
		TrainedAt:  trainedAt,
		Iterations: model.Iter,
	}
	t.record(ctx, report)
	return report, nil
}

// TrainCluster scales the spending rows, runs k-means and labels each
// centroid in original units.
func (t *Trainer) TrainCluster(ctx context.Context) (Report, error) {
	ds, err := loadTabularDataset(filepath.Join(t.config.DataDir, ClusterDataFile), ml.SpendingCategories[:], "")
	if err != nil {
		return Report{}, err
	}
	if len(ds.features) < t.config.Clusters {
		return Report{}, fmt.Errorf("need at least %d rows for %d clusters, got %d",
			t.config.Clusters, t.config.Clusters, len(ds.features))
	}

	scaler := &ml.StandardScaler{}
	if err := scaler.Fit(ds.features); err != nil {
		return Report{}, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.TransformAll(ds.features)
	if err != nil {
		return Report{}, err
	}

	config := ml.DefaultKMeansConfig()
	config.Clusters = t.config.Clusters
	config.Seed = t.config.Seed
	km := ml.NewKMeans(config)
	if err := km.Fit(scaled); err != nil {
		return Report{}, fmt.Errorf("fit k-means: %w", err)
	}

	model, err := ml.NewClusterModel(scaler, km)
	if err != nil {
		return Report{}, err
	}
	centroids, err := model.Centroids()
	if err != nil {
		return Report{}, err
	}
	for id, label := range model.Labels {
		t.logger.Info("cluster interpretation",
			zap.Int("cluster_id", id),
			zap.String("label", label),
			zap.Float64s("centroid", centroids[id]))
	}

	trainedAt := t.now()
	path := filepath.Join(t.config.ModelDir, ml.ClusterModelFile)
	if err := ml.SaveArtifact(path, ml.KindClusterBundle, model, trainedAt); err != nil {
		return Report{}, err
	}

	report := Report{
		Task:    TaskCluster,
		Samples: len(ds.features),
		Details: map[string]any{
			"clusters":  km.Clusters(),
			"labels":    model.Labels,
			"centroids": centroids,
			"inertia":   km.Inertia,
		},
		Artifacts:  []string{path},
		TrainedAt:  trainedAt,
		Iterations: km.Iter,
	}
	t.record(ctx, report)
	return report, nil
}

// record never fails the run: the artifacts are already on disk.
func (t *Trainer) record(ctx context.Context, report Report) {
	if t.recorder == nil {
		return
	}
	details, err := json.Marshal(report.Details)
	if err == nil {
		err = t.recorder.SaveTrainingRun(ctx, db.TrainingRun{
			ModelName:  report.Task,
			Accuracy:   report.Accuracy,
			DataPoints: report.Samples,
			Details:    details,
			TrainedAt:  report.TrainedAt,
		})
	}
	if err != nil {
		t.logger.Warn("record training run failed", zap.String("task", report.Task), zap.Error(err))
	}
}

func pick(rows [][]float64, labels []string, indices []int) ([][]float64, []string) {
	x := make([][]float64, len(indices))
	y := make([]string, len(indices))
	for i, idx := range indices {
		x[i] = rows[idx]
		y[i] = labels[idx]
	}
	return x, y
}
