package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteModel forwards encoded batches to an external model server, for
// deployments where the classifier is served by its native framework.
type RemoteModel struct {
	client *resty.Client
}

type remotePredictRequest struct {
	InputIds      [][]int64 `json:"input_ids"`
	AttentionMask [][]int64 `json:"attention_mask"`
}

func NewRemoteModel(baseURL string, timeout time.Duration) *RemoteModel {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RemoteModel{client: client}
}

func (m *RemoteModel) Predict(ctx context.Context, batch *Batch) (*ModelOutput, error) {
	var out ModelOutput

	res, err := m.client.R().
		SetContext(ctx).
		SetBody(remotePredictRequest{InputIds: batch.InputIds, AttentionMask: batch.AttentionMask}).
		SetResult(&out).
		Post("/predict")
	if err != nil {
		slog.Error("unable to reach model server", "error", err)
		return nil, fmt.Errorf("error calling model server: %w", err)
	}

	if !res.IsSuccess() {
		slog.Error("model server returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("model server returned status %d: %s", res.StatusCode(), res.String())
	}

	return &out, nil
}

func (m *RemoteModel) Release() {}
