package tracking

import (
	"fmt"
	"strings"

	apitags "github.com/opst/mlreg/pkg/api/types/tags"
)

type RunStatus string

const (
	Running   RunStatus = "RUNNING"
	Scheduled RunStatus = "SCHEDULED"
	Finished  RunStatus = "FINISHED"
	Failed    RunStatus = "FAILED"
	Killed    RunStatus = "KILLED"
)

func AsRunStatus(s string) (RunStatus, error) {
	switch rs := RunStatus(strings.ToUpper(s)); rs {
	case Running, Scheduled, Finished, Failed, Killed:
		return rs, nil
	default:
		return "", fmt.Errorf("unknown run status: %s", s)
	}
}

type Experiment struct {
	ExperimentId     string        `json:"experiment_id"`
	Name             string        `json:"name"`
	ArtifactLocation string        `json:"artifact_location,omitempty"`
	LifecycleStage   string        `json:"lifecycle_stage,omitempty"`
	Tags             []apitags.Tag `json:"tags,omitempty"`
}

type RunInfo struct {
	RunId          string    `json:"run_id"`
	RunName        string    `json:"run_name,omitempty"`
	ExperimentId   string    `json:"experiment_id"`
	UserId         string    `json:"user_id,omitempty"`
	Status         RunStatus `json:"status"`
	StartTime      int64     `json:"start_time,omitempty"`
	EndTime        int64     `json:"end_time,omitempty"`
	ArtifactUri    string    `json:"artifact_uri"`
	LifecycleStage string    `json:"lifecycle_stage,omitempty"`
}

type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RunData struct {
	Metrics []Metric      `json:"metrics,omitempty"`
	Params  []Param       `json:"params,omitempty"`
	Tags    []apitags.Tag `json:"tags,omitempty"`
}

// Run is one execution of a training procedure.
type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

// Param returns the value of the param with the key.
func (r Run) Param(key string) (string, bool) {
	for _, p := range r.Data.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Metric returns the latest logged value of the metric with the key.
func (r Run) Metric(key string) (float64, bool) {
	found := false
	var latest Metric
	for _, m := range r.Data.Metrics {
		if m.Key != key {
			continue
		}
		if !found || latest.Step < m.Step || (latest.Step == m.Step && latest.Timestamp <= m.Timestamp) {
			latest = m
			found = true
		}
	}
	return latest.Value, found
}

// FileInfo is an entry of artifact listing.
type FileInfo struct {
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	FileSize int64  `json:"file_size,omitempty"`
}
