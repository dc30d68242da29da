package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"spendwise/cache"
	"spendwise/db"
	"spendwise/ml"
	"spendwise/monitoring"
)

const (
	endpointCategory = "predict-category"
	endpointGoalRisk = "predict-goal-risk"
	endpointCluster  = "cluster-user"
)

// maxWholeNumber 是 float64 能精确表示的最大整数
const maxWholeNumber = 1 << 53

// Store 预测日志与训练记录的持久化接口，由 *db.Store 实现
type Store interface {
	SavePrediction(ctx context.Context, p db.Prediction) error
	RecentPredictions(ctx context.Context, endpoint string, limit int) ([]db.Prediction, error)
	LoadTrainingRuns(ctx context.Context, limit int) ([]db.TrainingRun, error)
}

// Deps API 依赖。Artifacts 必填，其余可为空
type Deps struct {
	Artifacts *ml.Artifacts
	Cache     cache.Cache
	Store     Store
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
	// Stale 报告磁盘上的模型文件是否已在加载后变化
	Stale func() bool
}

// API 推理端点。模型在启动时加载，之后只读，处理器无需加锁
type API struct {
	artifacts *ml.Artifacts
	cache     cache.Cache
	store     Store
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	stale     func() bool
}

func NewAPI(deps Deps) *API {
	api := &API{
		artifacts: deps.Artifacts,
		cache:     deps.Cache,
		store:     deps.Store,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		stale:     deps.Stale,
	}
	if api.cache == nil {
		api.cache = cache.Noop{}
	}
	if api.logger == nil {
		api.logger = zap.NewNop()
	}
	if api.stale == nil {
		api.stale = func() bool { return false }
	}
	return api
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /models", a.handleModels)
	mux.HandleFunc("POST /predict-category", a.handlePredictCategory)
	mux.HandleFunc("POST /predict-goal-risk", a.handlePredictGoalRisk)
	mux.HandleFunc("POST /cluster-user", a.handleClusterUser)
	if a.store != nil {
		mux.HandleFunc("GET /predictions", a.handlePredictions)
		mux.HandleFunc("GET /training-runs", a.handleTrainingRuns)
	}
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "ML Service API is running"})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelsResponse struct {
	ml.ArtifactInfo
	Stale bool `json:"stale"`
}

func (a *API) handleModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, modelsResponse{ArtifactInfo: a.artifacts.Info(), Stale: a.stale()})
}

// queryLimit 解析 limit 查询参数，缺省为 50
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 50, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, &ValidationError{Field: "limit", Reason: "must be a positive integer"}
	}
	return limit, nil
}

// handlePredictions 返回最近的预测日志，可按 endpoint 过滤
func (a *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		respondRequestError(w, err)
		return
	}
	endpoint := r.URL.Query().Get("endpoint")
	switch endpoint {
	case "", endpointCategory, endpointGoalRisk, endpointCluster:
	default:
		respondRequestError(w, &ValidationError{Field: "endpoint", Reason: "unknown endpoint"})
		return
	}

	predictions, err := a.store.RecentPredictions(r.Context(), endpoint, limit)
	if err != nil {
		a.logger.Error("load predictions failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func (a *API) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		respondRequestError(w, err)
		return
	}

	runs, err := a.store.LoadTrainingRuns(r.Context(), limit)
	if err != nil {
		a.logger.Error("load training runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type categoryRequest struct {
	Text *string `json:"text"`
}

type categoryResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

func (a *API) handlePredictCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondRequestError(w, err)
		return
	}
	if req.Text == nil {
		respondRequestError(w, &ValidationError{Field: "text", Reason: "field required"})
		return
	}

	a.serve(w, r, endpointCategory, req, func() (any, string, error) {
		prediction, err := a.artifacts.PredictCategory(*req.Text)
		if err != nil {
			return nil, "", err
		}
		return categoryResponse{Category: prediction.Category, Confidence: prediction.Confidence}, prediction.Category, nil
	})
}

type goalRequest struct {
	AvgDailySpend *float64 `json:"avg_daily_spend"`
	DaysRemaining *float64 `json:"days_remaining"`
	GoalAmount    *float64 `json:"goal_amount"`
}

func (req goalRequest) validate() error {
	if req.AvgDailySpend == nil {
		return &ValidationError{Field: "avg_daily_spend", Reason: "field required"}
	}
	if req.DaysRemaining == nil {
		return &ValidationError{Field: "days_remaining", Reason: "field required"}
	}
	// 整数字段接受 10.0，拒绝 10.5
	if days := *req.DaysRemaining; days != math.Trunc(days) || math.Abs(days) > maxWholeNumber {
		return &ValidationError{Field: "days_remaining", Reason: "must be an integer"}
	}
	if req.GoalAmount == nil {
		return &ValidationError{Field: "goal_amount", Reason: "field required"}
	}
	return nil
}

type goalResponse struct {
	Risk string `json:"risk"`
}

func (a *API) handlePredictGoalRisk(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondRequestError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respondRequestError(w, err)
		return
	}

	a.serve(w, r, endpointGoalRisk, req, func() (any, string, error) {
		risk, err := a.artifacts.PredictGoalRisk(ml.GoalFeatures{
			AvgDailySpend: *req.AvgDailySpend,
			DaysRemaining: int(*req.DaysRemaining),
			GoalAmount:    *req.GoalAmount,
		})
		if err != nil {
			return nil, "", err
		}
		return goalResponse{Risk: risk}, risk, nil
	})
}

type clusterRequest struct {
	Food      *float64 `json:"food"`
	Shopping  *float64 `json:"shopping"`
	Transport *float64 `json:"transport"`
	Utilities *float64 `json:"utilities"`
}

func (req clusterRequest) validate() error {
	fields := []struct {
		name  string
		value *float64
	}{
		{"food", req.Food},
		{"shopping", req.Shopping},
		{"transport", req.Transport},
		{"utilities", req.Utilities},
	}
	for _, f := range fields {
		switch {
		case f.value == nil:
			return &ValidationError{Field: f.name, Reason: "field required"}
		case math.IsNaN(*f.value) || math.IsInf(*f.value, 0):
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		case *f.value < 0:
			return &ValidationError{Field: f.name, Reason: "must be greater than or equal to 0"}
		}
	}
	return nil
}

type clusterResponse struct {
	ClusterID             int     `json:"cluster_id"`
	SpenderType           string  `json:"spender_type"`
	TopCategory           string  `json:"top_category"`
	TopCategoryPercentage float64 `json:"top_category_percentage"`
}

func (a *API) handleClusterUser(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondRequestError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respondRequestError(w, err)
		return
	}

	a.serve(w, r, endpointCluster, req, func() (any, string, error) {
		assignment, err := a.artifacts.AssignCluster(ml.Spending{
			Food:      *req.Food,
			Shopping:  *req.Shopping,
			Transport: *req.Transport,
			Utilities: *req.Utilities,
		})
		if err != nil {
			return nil, "", err
		}
		return clusterResponse{
			ClusterID:             assignment.ClusterID,
			SpenderType:           assignment.SpenderType,
			TopCategory:           assignment.TopCategory,
			TopCategoryPercentage: assignment.TopCategoryPercentage,
		}, assignment.SpenderType, nil
	})
}

// serve 查缓存，未命中时调用 predict 并写回缓存与预测日志。
// req 必须已通过校验，其 JSON 编码作为缓存键
func (a *API) serve(w http.ResponseWriter, r *http.Request, endpoint string, req any, predict func() (any, string, error)) {
	ctx := r.Context()
	requestBody, err := json.Marshal(req)
	if err != nil {
		a.logger.Error("encode request failed", zap.String("endpoint", endpoint), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	key := endpoint + ":" + string(requestBody)

	if body, ok := a.cache.Get(ctx, key); ok {
		a.metrics.ObserveCache(endpoint, true)
		writeBody(w, []byte(body))
		a.record(ctx, endpoint, requestBody, []byte(body), true)
		return
	}
	a.metrics.ObserveCache(endpoint, false)

	response, label, err := predict()
	if err != nil {
		a.logger.Error("prediction failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", GetRequestID(ctx)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(response); err != nil {
		a.logger.Error("encode response failed", zap.String("endpoint", endpoint), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	body := buf.Bytes()

	if err := a.cache.Set(ctx, key, string(body)); err != nil {
		a.logger.Warn("cache set failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	a.metrics.ObservePrediction(endpoint, label)
	writeBody(w, body)
	a.record(ctx, endpoint, requestBody, body, false)
}

func (a *API) record(ctx context.Context, endpoint string, request, response []byte, cached bool) {
	if a.store == nil {
		return
	}
	err := a.store.SavePrediction(ctx, db.Prediction{
		RequestID: GetRequestID(ctx),
		Endpoint:  endpoint,
		Request:   request,
		Response:  bytes.TrimSpace(response),
		Cached:    cached,
	})
	if err != nil {
		a.logger.Warn("record prediction failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
}

func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
