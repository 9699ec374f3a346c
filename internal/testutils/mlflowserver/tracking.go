package mlflowserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
)

func (s *Server) getExperimentByName(c echo.Context) error {
	name := c.QueryParam("experiment_name")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exp := range s.experiments {
		if exp.Name == name {
			return c.JSON(http.StatusOK, tracking.GetExperimentResponse{Experiment: *exp})
		}
	}
	return apierr.NotFound("Could not find experiment with name '%s'", name)
}

func (s *Server) createExperiment(c echo.Context) error {
	req, err := bind[tracking.CreateExperimentRequest](c)
	if err != nil {
		return err
	}
	if err := required("name", req.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exp := range s.experiments {
		if exp.Name == req.Name {
			return apierr.AlreadyExists("Experiment '%s' already exists.", req.Name)
		}
	}
	s.seq += 1
	id := fmt.Sprint(s.seq)
	loc := req.ArtifactLocation
	if loc == "" {
		loc = "mlflow-artifacts:/" + id
	}
	s.experiments[id] = &tracking.Experiment{
		ExperimentId: id, Name: req.Name, ArtifactLocation: loc, LifecycleStage: "active",
	}
	return c.JSON(http.StatusOK, tracking.CreateExperimentResponse{ExperimentId: id})
}

// run returns the run. s.mu should be locked.
func (s *Server) run(runId string) (*tracking.Run, error) {
	r, ok := s.runs[runId]
	if !ok {
		return nil, apierr.NotFound("Run '%s' not found", runId)
	}
	return r, nil
}

func (s *Server) createRun(c echo.Context) error {
	req, err := bind[tracking.CreateRunRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[req.ExperimentId]
	if !ok {
		return apierr.NotFound("No Experiment with id=%s exists", req.ExperimentId)
	}
	id := s.nextId()
	start := req.StartTime
	if start == 0 {
		start = s.millis()
	}
	run := &tracking.Run{
		Info: tracking.RunInfo{
			RunId: id, RunName: req.RunName, ExperimentId: exp.ExperimentId,
			Status: tracking.Running, StartTime: start,
			ArtifactUri:    fmt.Sprintf("%s/%s/artifacts", exp.ArtifactLocation, id),
			LifecycleStage: "active",
		},
		Data: tracking.RunData{Tags: append([]apitags.Tag{}, req.Tags...)},
	}
	s.runs[id] = run
	return c.JSON(http.StatusOK, tracking.RunResponse{Run: *run})
}

func (s *Server) getRun(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(c.QueryParam("run_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tracking.RunResponse{Run: *run})
}

func (s *Server) updateRun(c echo.Context) error {
	req, err := bind[tracking.UpdateRunRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(req.RunId)
	if err != nil {
		return err
	}
	if req.Status != "" {
		if _, err := tracking.AsRunStatus(string(req.Status)); err != nil {
			return apierr.BadRequest("%s", err)
		}
		run.Info.Status = req.Status
	}
	if req.EndTime != 0 {
		run.Info.EndTime = req.EndTime
	}
	if req.RunName != "" {
		run.Info.RunName = req.RunName
	}
	return c.JSON(http.StatusOK, tracking.UpdateRunResponse{RunInfo: run.Info})
}

// addParam records a param. Params are immutable once logged.
func addParam(run *tracking.Run, p tracking.Param) error {
	if err := required("key", p.Key); err != nil {
		return err
	}
	if v, ok := run.Param(p.Key); ok {
		if v == p.Value {
			return nil
		}
		return apierr.BadRequest(
			"Changing param values is not allowed. Param with key='%s' was already logged with value='%s' for run ID='%s'",
			p.Key, v, run.Info.RunId,
		)
	}
	run.Data.Params = append(run.Data.Params, p)
	return nil
}

func setTag(run *tracking.Run, t apitags.Tag) {
	for i := range run.Data.Tags {
		if run.Data.Tags[i].Key == t.Key {
			run.Data.Tags[i].Value = t.Value
			return
		}
	}
	run.Data.Tags = append(run.Data.Tags, t)
}

func (s *Server) logParam(c echo.Context) error {
	req, err := bind[tracking.LogParamRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(req.RunId)
	if err != nil {
		return err
	}
	if err := addParam(run, tracking.Param{Key: req.Key, Value: req.Value}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) logMetric(c echo.Context) error {
	req, err := bind[tracking.LogMetricRequest](c)
	if err != nil {
		return err
	}
	if err := required("key", req.Key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(req.RunId)
	if err != nil {
		return err
	}
	run.Data.Metrics = append(run.Data.Metrics, tracking.Metric{
		Key: req.Key, Value: req.Value, Timestamp: req.Timestamp, Step: req.Step,
	})
	return c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) logBatch(c echo.Context) error {
	req, err := bind[tracking.LogBatchRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(req.RunId)
	if err != nil {
		return err
	}
	for _, p := range req.Params {
		if err := addParam(run, p); err != nil {
			return err
		}
	}
	for _, m := range req.Metrics {
		if err := required("key", m.Key); err != nil {
			return err
		}
		run.Data.Metrics = append(run.Data.Metrics, m)
	}
	for _, t := range req.Tags {
		setTag(run, t)
	}
	return c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) setTag(c echo.Context) error {
	req, err := bind[tracking.SetTagRequest](c)
	if err != nil {
		return err
	}
	if err := required("key", req.Key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(req.RunId)
	if err != nil {
		return err
	}
	setTag(run, apitags.Tag{Key: req.Key, Value: req.Value})
	return c.JSON(http.StatusOK, struct{}{})
}

// logModel appends the model to the history tag of the run.
func (s *Server) logModel(c echo.Context) error {
	req, err := bind[tracking.LogModelRequest](c)
	if err != nil {
		return err
	}
	model := map[string]any{}
	if err := json.Unmarshal([]byte(req.ModelJson), &model); err != nil {
		return apierr.BadRequest("model_json is not JSON: %s", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.run(req.RunId)
	if err != nil {
		return err
	}

	history := []map[string]any{}
	if h, ok := apitags.Lookup(run.Data.Tags, apitags.KeyLogModel); ok {
		if err := json.Unmarshal([]byte(h), &history); err != nil {
			return apierr.InternalServerError(err)
		}
	}
	history = append(history, model)
	h, err := json.Marshal(history)
	if err != nil {
		return apierr.InternalServerError(err)
	}
	setTag(run, apitags.Tag{Key: apitags.KeyLogModel, Value: string(h)})
	return c.JSON(http.StatusOK, struct{}{})
}

// Run returns a copy of the run.
func (s *Server) Run(runId string) (tracking.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runId]
	if !ok {
		return tracking.Run{}, false
	}
	return *r, true
}
