package tracking

import apitags "github.com/opst/mlreg/pkg/api/types/tags"

// request and response bodies of the tracking API.

type CreateExperimentRequest struct {
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location,omitempty"`
}

type CreateExperimentResponse struct {
	ExperimentId string `json:"experiment_id"`
}

type GetExperimentResponse struct {
	Experiment Experiment `json:"experiment"`
}

type CreateRunRequest struct {
	ExperimentId string        `json:"experiment_id"`
	RunName      string        `json:"run_name,omitempty"`
	StartTime    int64         `json:"start_time,omitempty"`
	Tags         []apitags.Tag `json:"tags,omitempty"`
}

type RunResponse struct {
	Run Run `json:"run"`
}

type UpdateRunRequest struct {
	RunId   string    `json:"run_id"`
	Status  RunStatus `json:"status,omitempty"`
	EndTime int64     `json:"end_time,omitempty"`
	RunName string    `json:"run_name,omitempty"`
}

type UpdateRunResponse struct {
	RunInfo RunInfo `json:"run_info"`
}

type LogParamRequest struct {
	RunId string `json:"run_id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type LogMetricRequest struct {
	RunId     string  `json:"run_id"`
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type LogBatchRequest struct {
	RunId   string        `json:"run_id"`
	Metrics []Metric      `json:"metrics,omitempty"`
	Params  []Param       `json:"params,omitempty"`
	Tags    []apitags.Tag `json:"tags,omitempty"`
}

type SetTagRequest struct {
	RunId string `json:"run_id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type LogModelRequest struct {
	RunId string `json:"run_id"`

	// MLmodel document encoded as JSON.
	ModelJson string `json:"model_json"`
}

type ListArtifactsResponse struct {
	Files []FileInfo `json:"files,omitempty"`
}
