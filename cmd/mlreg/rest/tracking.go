package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
)

func (c *client) GetExperimentByName(ctx context.Context, name string) (tracking.Experiment, error) {
	resp, err := get[tracking.GetExperimentResponse](
		ctx, c, c.mlflow("experiments", "get-by-name"),
		url.Values{"experiment_name": {name}},
		MessageFor{
			Status4xx: fmt.Sprintf("experiment %q is not found", name),
			Status5xx: "server error on getting experiment",
		},
	)
	return resp.Experiment, err
}

func (c *client) CreateExperiment(ctx context.Context, name string) (string, error) {
	resp, err := send[tracking.CreateExperimentResponse](
		ctx, c, http.MethodPost, c.mlflow("experiments", "create"),
		tracking.CreateExperimentRequest{Name: name},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot create experiment %q", name),
			Status5xx: "server error on creating experiment",
		},
	)
	return resp.ExperimentId, err
}

func (c *client) EnsureExperiment(ctx context.Context, name string) (string, error) {
	exp, err := c.GetExperimentByName(ctx, name)
	if err == nil {
		return exp.ExperimentId, nil
	}
	if !errors.Is(err, apierr.ErrResourceDoesNotExist) {
		return "", err
	}

	id, err := c.CreateExperiment(ctx, name)
	if errors.Is(err, apierr.ErrResourceAlreadyExists) {
		// created by someone else in the meantime.
		exp, err := c.GetExperimentByName(ctx, name)
		return exp.ExperimentId, err
	}
	return id, err
}

func (c *client) CreateRun(ctx context.Context, experimentId string, runName string, tags []apitags.Tag) (tracking.Run, error) {
	if runName != "" {
		if _, ok := apitags.Lookup(tags, apitags.KeyRunName); !ok {
			tags = append(tags, apitags.Tag{Key: apitags.KeyRunName, Value: runName})
		}
	}
	resp, err := send[tracking.RunResponse](
		ctx, c, http.MethodPost, c.mlflow("runs", "create"),
		tracking.CreateRunRequest{
			ExperimentId: experimentId,
			RunName:      runName,
			StartTime:    c.now().UnixMilli(),
			Tags:         tags,
		},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot create a run in experiment %s", experimentId),
			Status5xx: "server error on creating run",
		},
	)
	return resp.Run, err
}

func (c *client) GetRun(ctx context.Context, runId string) (tracking.Run, error) {
	resp, err := get[tracking.RunResponse](
		ctx, c, c.mlflow("runs", "get"),
		url.Values{"run_id": {runId}},
		MessageFor{
			Status4xx: fmt.Sprintf("run %s is not found", runId),
			Status5xx: "server error on getting run",
		},
	)
	return resp.Run, err
}

func (c *client) EndRun(ctx context.Context, runId string, status tracking.RunStatus) error {
	_, err := send[tracking.UpdateRunResponse](
		ctx, c, http.MethodPost, c.mlflow("runs", "update"),
		tracking.UpdateRunRequest{RunId: runId, Status: status, EndTime: c.now().UnixMilli()},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot end run %s", runId),
			Status5xx: "server error on updating run",
		},
	)
	return err
}

func (c *client) LogParam(ctx context.Context, runId string, key string, value string) error {
	_, err := send[empty](
		ctx, c, http.MethodPost, c.mlflow("runs", "log-parameter"),
		tracking.LogParamRequest{RunId: runId, Key: key, Value: value},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot log param %s to run %s", key, runId),
			Status5xx: "server error on logging param",
		},
	)
	return err
}

func (c *client) LogMetric(ctx context.Context, runId string, key string, value float64, step int64) error {
	_, err := send[empty](
		ctx, c, http.MethodPost, c.mlflow("runs", "log-metric"),
		tracking.LogMetricRequest{
			RunId: runId, Key: key, Value: value, Step: step,
			Timestamp: c.now().UnixMilli(),
		},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot log metric %s to run %s", key, runId),
			Status5xx: "server error on logging metric",
		},
	)
	return err
}

func (c *client) LogBatch(ctx context.Context, runId string, metrics []tracking.Metric, params []tracking.Param, tags []apitags.Tag) error {
	now := c.now().UnixMilli()
	stamped := make([]tracking.Metric, len(metrics))
	for i, m := range metrics {
		if m.Timestamp == 0 {
			m.Timestamp = now
		}
		stamped[i] = m
	}
	_, err := send[empty](
		ctx, c, http.MethodPost, c.mlflow("runs", "log-batch"),
		tracking.LogBatchRequest{RunId: runId, Metrics: stamped, Params: params, Tags: tags},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot log to run %s", runId),
			Status5xx: "server error on logging",
		},
	)
	return err
}

func (c *client) SetTag(ctx context.Context, runId string, key string, value string) error {
	_, err := send[empty](
		ctx, c, http.MethodPost, c.mlflow("runs", "set-tag"),
		tracking.SetTagRequest{RunId: runId, Key: key, Value: value},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot set tag %s on run %s", key, runId),
			Status5xx: "server error on setting tag",
		},
	)
	return err
}

func (c *client) LogModel(ctx context.Context, runId string, mlmodelJson string) error {
	_, err := send[empty](
		ctx, c, http.MethodPost, c.mlflow("runs", "log-model"),
		tracking.LogModelRequest{RunId: runId, ModelJson: mlmodelJson},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot log model to run %s", runId),
			Status5xx: "server error on logging model",
		},
	)
	return err
}
