package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tcrbert-backend/internal/chart"
	"tcrbert-backend/internal/core"
	"tcrbert-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

type PredictionService struct {
	predictor *core.Predictor
	chartOpts chart.Options
}

func NewPredictionService(predictor *core.Predictor, chartOpts chart.Options) *PredictionService {
	return &PredictionService{predictor: predictor, chartOpts: chartOpts}
}

func getOrPost(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Get(pattern, h)
	r.Post(pattern, h)
}

func (s *PredictionService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	getOrPost(r, "/", RestHandler(s.Index))
	r.Route("/tcrbert", func(r chi.Router) {
		getOrPost(r, "/", RestHandler(s.Index))
		getOrPost(r, "/predict", RestHandler(s.Predict))
		getOrPost(r, "/generate_attn_chart", PngHandler(s.GenerateAttnChart))
	})
}

func (s *PredictionService) Index(r *http.Request) (any, error) {
	return convertIndex(s.predictor.Config()), nil
}

func (s *PredictionService) Predict(r *http.Request) (any, error) {
	req, err := ParseRequestForm[api.PredictRequest](r)
	if err != nil {
		return nil, err
	}

	epitope := strings.ToUpper(strings.TrimSpace(req.Epitope))
	cdr3bs := core.SplitSeqs(req.Cdr3bs)

	slog.Info("received prediction request", "epitope", epitope, "cdr3bs", cdr3bs)

	groups, err := s.predictor.Predict(r.Context(), epitope, cdr3bs)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return nil, CodedError(http.StatusInternalServerError, err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "prediction failed: %v", err)
	}

	return api.PredictResponse{Results: convertResultGroups(groups)}, nil
}

func (s *PredictionService) GenerateAttnChart(r *http.Request) ([]byte, error) {
	req, err := ParseRequestForm[api.ChartRequest](r)
	if err != nil {
		return nil, err
	}

	epitope := strings.ToUpper(strings.TrimSpace(req.Epitope))
	if !core.IsValidAASeq(epitope) {
		return nil, CodedErrorf(http.StatusInternalServerError, "Invalid epitope sequence: %s", req.Epitope)
	}

	var attns []float64
	if err := json.Unmarshal([]byte(req.Attns), &attns); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "invalid attns, expected a json array of numbers: %v", err)
	}

	slog.Info("received chart request", "epitope", epitope, "cdr3b_len", req.Cdr3bLen, "n_attns", len(attns))

	img, err := chart.RenderAttentionChart(epitope, req.Cdr3bLen, attns, s.chartOpts)
	if err != nil {
		if errors.Is(err, chart.ErrInvalidChartInput) {
			return nil, CodedError(http.StatusInternalServerError, err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "chart rendering failed: %v", err)
	}

	return img, nil
}
