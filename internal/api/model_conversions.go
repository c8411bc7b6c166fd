package api

import (
	"tcrbert-backend/internal/config"
	"tcrbert-backend/internal/core"
	"tcrbert-backend/pkg/api"
)

func convertIndex(cfg *config.DataConfig) api.IndexResponse {
	return api.IndexResponse{
		Cdr3bs:       cfg.SampleCdr3bs,
		Epitopes:     cfg.SampleEpitopes,
		Epitope:      cfg.DefaultEpitope(),
		MaxCdr3b:     cfg.MaxCdr3b,
		MaxNCdr3bs:   cfg.MaxNCdr3bs,
		EpitopeRange: cfg.EpitopeRangeString(),
	}
}

func convertPrediction(p core.Prediction) api.PredictionResult {
	return api.PredictionResult{
		Epitope: p.Epitope,
		Cdr3b:   p.Cdr3b,
		Label:   p.Label,
	}
}

func convertResultGroup(g core.ResultGroup) api.ResultGroup {
	results := make([]api.PredictionResult, 0, len(g.Predictions))
	for _, p := range g.Predictions {
		results = append(results, convertPrediction(p))
	}
	return api.ResultGroup{
		Cdr3bLen:   g.Cdr3bLen,
		Results:    results,
		Attentions: g.PositiveAttention,
	}
}

func convertResultGroups(gs []core.ResultGroup) api.ResultGroups {
	groups := make(api.ResultGroups, 0, len(gs))
	for _, g := range gs {
		groups = append(groups, convertResultGroup(g))
	}
	return groups
}
