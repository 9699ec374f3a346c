// Package mock provides a MLflowClient whose behaviors are given by tests.
package mock

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
)

type CreateRunArgs struct {
	ExperimentId string
	RunName      string
	Tags         []apitags.Tag
}

type LogParamArgs struct {
	RunId string
	Key   string
	Value string
}

type LogMetricArgs struct {
	RunId string
	Key   string
	Value float64
	Step  int64
}

type LogBatchArgs struct {
	RunId   string
	Metrics []tracking.Metric
	Params  []tracking.Param
	Tags    []apitags.Tag
}

type EndRunArgs struct {
	RunId  string
	Status tracking.RunStatus
}

type ArtifactArgs struct {
	ArtifactUri string
	Relpath     string
}

type UploadArtifactArgs struct {
	ArtifactUri string
	Relpath     string
	Content     []byte
}

type CreateModelVersionArgs struct {
	Name        string
	Source      string
	RunId       string
	Description string
	Tags        []apitags.Tag
}

type NameVersionArgs struct {
	Name    string
	Version registry.Version
}

type UpdateRegisteredModelArgs struct {
	Name        string
	Description string
}

type UpdateModelVersionArgs struct {
	Name        string
	Version     registry.Version
	Description string
}

type TransitionArgs struct {
	Name            string
	Version         registry.Version
	Stage           registry.Stage
	ArchiveExisting bool
}

type GetLatestVersionsArgs struct {
	Name   string
	Stages []registry.Stage
}

// MockClient is a rest.MLflowClient for tests.
//
// Set functions in Impl for methods to be called. Calling a method without Impl fails the test.
// Arguments of each call are recorded in Calls.
type MockClient struct {
	t    *testing.T
	Impl struct {
		GetExperimentByName         func(ctx context.Context, name string) (tracking.Experiment, error)
		CreateExperiment            func(ctx context.Context, name string) (string, error)
		EnsureExperiment            func(ctx context.Context, name string) (string, error)
		CreateRun                   func(ctx context.Context, experimentId string, runName string, tags []apitags.Tag) (tracking.Run, error)
		GetRun                      func(ctx context.Context, runId string) (tracking.Run, error)
		EndRun                      func(ctx context.Context, runId string, status tracking.RunStatus) error
		LogParam                    func(ctx context.Context, runId, key, value string) error
		LogMetric                   func(ctx context.Context, runId, key string, value float64, step int64) error
		LogBatch                    func(ctx context.Context, runId string, metrics []tracking.Metric, params []tracking.Param, tags []apitags.Tag) error
		SetTag                      func(ctx context.Context, runId, key, value string) error
		LogModel                    func(ctx context.Context, runId string, mlmodelJson string) error
		UploadArtifact              func(ctx context.Context, artifactUri, relpath string, content io.Reader) error
		DownloadArtifact            func(ctx context.Context, artifactUri, relpath string, handler func(io.Reader) error) error
		ListArtifacts               func(ctx context.Context, artifactUri, relpath string) ([]tracking.FileInfo, error)
		CreateRegisteredModel       func(ctx context.Context, name, description string, tags []apitags.Tag) (registry.RegisteredModel, error)
		GetRegisteredModel          func(ctx context.Context, name string) (registry.RegisteredModel, error)
		UpdateRegisteredModel       func(ctx context.Context, name, description string) (registry.RegisteredModel, error)
		DeleteRegisteredModel       func(ctx context.Context, name string) error
		SearchRegisteredModels      func(ctx context.Context, filter string) ([]registry.RegisteredModel, error)
		GetLatestVersions           func(ctx context.Context, name string, stages []registry.Stage) ([]registry.ModelVersion, error)
		CreateModelVersion          func(ctx context.Context, name, source, runId, description string, tags []apitags.Tag) (registry.ModelVersion, error)
		GetModelVersion             func(ctx context.Context, name string, version registry.Version) (registry.ModelVersion, error)
		UpdateModelVersion          func(ctx context.Context, name string, version registry.Version, description string) (registry.ModelVersion, error)
		DeleteModelVersion          func(ctx context.Context, name string, version registry.Version) error
		TransitionModelVersionStage func(ctx context.Context, name string, version registry.Version, stage registry.Stage, archiveExisting bool) (registry.ModelVersion, error)
		SearchModelVersions         func(ctx context.Context, filter string) ([]registry.ModelVersion, error)
		GetModelVersionDownloadUri  func(ctx context.Context, name string, version registry.Version) (string, error)
	}
	Calls struct {
		GetExperimentByName         []string
		CreateExperiment            []string
		EnsureExperiment            []string
		CreateRun                   []CreateRunArgs
		GetRun                      []string
		EndRun                      []EndRunArgs
		LogParam                    []LogParamArgs
		LogMetric                   []LogMetricArgs
		LogBatch                    []LogBatchArgs
		SetTag                      []LogParamArgs
		LogModel                    []LogParamArgs
		UploadArtifact              []UploadArtifactArgs
		DownloadArtifact            []ArtifactArgs
		ListArtifacts               []ArtifactArgs
		CreateRegisteredModel       []UpdateRegisteredModelArgs
		GetRegisteredModel          []string
		UpdateRegisteredModel       []UpdateRegisteredModelArgs
		DeleteRegisteredModel       []string
		SearchRegisteredModels      []string
		GetLatestVersions           []GetLatestVersionsArgs
		CreateModelVersion          []CreateModelVersionArgs
		GetModelVersion             []NameVersionArgs
		UpdateModelVersion          []UpdateModelVersionArgs
		DeleteModelVersion          []NameVersionArgs
		TransitionModelVersionStage []TransitionArgs
		SearchModelVersions         []string
		GetModelVersionDownloadUri  []NameVersionArgs
	}
}

var _ rest.MLflowClient = &MockClient{}

func New(t *testing.T) *MockClient {
	return &MockClient{t: t}
}

func (m *MockClient) notImplemented(name string) {
	m.t.Helper()
	m.t.Fatalf("method %s has no mock implementation", name)
}

func (m *MockClient) GetExperimentByName(ctx context.Context, name string) (tracking.Experiment, error) {
	m.t.Helper()
	m.Calls.GetExperimentByName = append(m.Calls.GetExperimentByName, name)
	if m.Impl.GetExperimentByName == nil {
		m.notImplemented("GetExperimentByName")
	}
	return m.Impl.GetExperimentByName(ctx, name)
}

func (m *MockClient) CreateExperiment(ctx context.Context, name string) (string, error) {
	m.t.Helper()
	m.Calls.CreateExperiment = append(m.Calls.CreateExperiment, name)
	if m.Impl.CreateExperiment == nil {
		m.notImplemented("CreateExperiment")
	}
	return m.Impl.CreateExperiment(ctx, name)
}

func (m *MockClient) EnsureExperiment(ctx context.Context, name string) (string, error) {
	m.t.Helper()
	m.Calls.EnsureExperiment = append(m.Calls.EnsureExperiment, name)
	if m.Impl.EnsureExperiment == nil {
		m.notImplemented("EnsureExperiment")
	}
	return m.Impl.EnsureExperiment(ctx, name)
}

func (m *MockClient) CreateRun(ctx context.Context, experimentId string, runName string, tags []apitags.Tag) (tracking.Run, error) {
	m.t.Helper()
	m.Calls.CreateRun = append(m.Calls.CreateRun, CreateRunArgs{ExperimentId: experimentId, RunName: runName, Tags: tags})
	if m.Impl.CreateRun == nil {
		m.notImplemented("CreateRun")
	}
	return m.Impl.CreateRun(ctx, experimentId, runName, tags)
}

func (m *MockClient) GetRun(ctx context.Context, runId string) (tracking.Run, error) {
	m.t.Helper()
	m.Calls.GetRun = append(m.Calls.GetRun, runId)
	if m.Impl.GetRun == nil {
		m.notImplemented("GetRun")
	}
	return m.Impl.GetRun(ctx, runId)
}

func (m *MockClient) EndRun(ctx context.Context, runId string, status tracking.RunStatus) error {
	m.t.Helper()
	m.Calls.EndRun = append(m.Calls.EndRun, EndRunArgs{RunId: runId, Status: status})
	if m.Impl.EndRun == nil {
		m.notImplemented("EndRun")
	}
	return m.Impl.EndRun(ctx, runId, status)
}

func (m *MockClient) LogParam(ctx context.Context, runId, key, value string) error {
	m.t.Helper()
	m.Calls.LogParam = append(m.Calls.LogParam, LogParamArgs{RunId: runId, Key: key, Value: value})
	if m.Impl.LogParam == nil {
		m.notImplemented("LogParam")
	}
	return m.Impl.LogParam(ctx, runId, key, value)
}

func (m *MockClient) LogMetric(ctx context.Context, runId, key string, value float64, step int64) error {
	m.t.Helper()
	m.Calls.LogMetric = append(m.Calls.LogMetric, LogMetricArgs{RunId: runId, Key: key, Value: value, Step: step})
	if m.Impl.LogMetric == nil {
		m.notImplemented("LogMetric")
	}
	return m.Impl.LogMetric(ctx, runId, key, value, step)
}

func (m *MockClient) LogBatch(ctx context.Context, runId string, metrics []tracking.Metric, params []tracking.Param, tags []apitags.Tag) error {
	m.t.Helper()
	m.Calls.LogBatch = append(m.Calls.LogBatch, LogBatchArgs{RunId: runId, Metrics: metrics, Params: params, Tags: tags})
	if m.Impl.LogBatch == nil {
		m.notImplemented("LogBatch")
	}
	return m.Impl.LogBatch(ctx, runId, metrics, params, tags)
}

func (m *MockClient) SetTag(ctx context.Context, runId, key, value string) error {
	m.t.Helper()
	m.Calls.SetTag = append(m.Calls.SetTag, LogParamArgs{RunId: runId, Key: key, Value: value})
	if m.Impl.SetTag == nil {
		m.notImplemented("SetTag")
	}
	return m.Impl.SetTag(ctx, runId, key, value)
}

func (m *MockClient) LogModel(ctx context.Context, runId string, mlmodelJson string) error {
	m.t.Helper()
	m.Calls.LogModel = append(m.Calls.LogModel, LogParamArgs{RunId: runId, Key: "model_json", Value: mlmodelJson})
	if m.Impl.LogModel == nil {
		m.notImplemented("LogModel")
	}
	return m.Impl.LogModel(ctx, runId, mlmodelJson)
}

func (m *MockClient) UploadArtifact(ctx context.Context, artifactUri, relpath string, content io.Reader) error {
	m.t.Helper()
	b, err := io.ReadAll(content)
	if err != nil {
		m.t.Fatal(err)
	}
	m.Calls.UploadArtifact = append(m.Calls.UploadArtifact, UploadArtifactArgs{ArtifactUri: artifactUri, Relpath: relpath, Content: b})
	if m.Impl.UploadArtifact == nil {
		m.notImplemented("UploadArtifact")
	}
	return m.Impl.UploadArtifact(ctx, artifactUri, relpath, bytesReader(b))
}

func (m *MockClient) DownloadArtifact(ctx context.Context, artifactUri, relpath string, handler func(io.Reader) error) error {
	m.t.Helper()
	m.Calls.DownloadArtifact = append(m.Calls.DownloadArtifact, ArtifactArgs{ArtifactUri: artifactUri, Relpath: relpath})
	if m.Impl.DownloadArtifact == nil {
		m.notImplemented("DownloadArtifact")
	}
	return m.Impl.DownloadArtifact(ctx, artifactUri, relpath, handler)
}

func (m *MockClient) ListArtifacts(ctx context.Context, artifactUri, relpath string) ([]tracking.FileInfo, error) {
	m.t.Helper()
	m.Calls.ListArtifacts = append(m.Calls.ListArtifacts, ArtifactArgs{ArtifactUri: artifactUri, Relpath: relpath})
	if m.Impl.ListArtifacts == nil {
		m.notImplemented("ListArtifacts")
	}
	return m.Impl.ListArtifacts(ctx, artifactUri, relpath)
}

func (m *MockClient) CreateRegisteredModel(ctx context.Context, name, description string, tags []apitags.Tag) (registry.RegisteredModel, error) {
	m.t.Helper()
	m.Calls.CreateRegisteredModel = append(m.Calls.CreateRegisteredModel, UpdateRegisteredModelArgs{Name: name, Description: description})
	if m.Impl.CreateRegisteredModel == nil {
		m.notImplemented("CreateRegisteredModel")
	}
	return m.Impl.CreateRegisteredModel(ctx, name, description, tags)
}

func (m *MockClient) GetRegisteredModel(ctx context.Context, name string) (registry.RegisteredModel, error) {
	m.t.Helper()
	m.Calls.GetRegisteredModel = append(m.Calls.GetRegisteredModel, name)
	if m.Impl.GetRegisteredModel == nil {
		m.notImplemented("GetRegisteredModel")
	}
	return m.Impl.GetRegisteredModel(ctx, name)
}

func (m *MockClient) UpdateRegisteredModel(ctx context.Context, name, description string) (registry.RegisteredModel, error) {
	m.t.Helper()
	m.Calls.UpdateRegisteredModel = append(m.Calls.UpdateRegisteredModel, UpdateRegisteredModelArgs{Name: name, Description: description})
	if m.Impl.UpdateRegisteredModel == nil {
		m.notImplemented("UpdateRegisteredModel")
	}
	return m.Impl.UpdateRegisteredModel(ctx, name, description)
}

func (m *MockClient) DeleteRegisteredModel(ctx context.Context, name string) error {
	m.t.Helper()
	m.Calls.DeleteRegisteredModel = append(m.Calls.DeleteRegisteredModel, name)
	if m.Impl.DeleteRegisteredModel == nil {
		m.notImplemented("DeleteRegisteredModel")
	}
	return m.Impl.DeleteRegisteredModel(ctx, name)
}

func (m *MockClient) SearchRegisteredModels(ctx context.Context, filter string) ([]registry.RegisteredModel, error) {
	m.t.Helper()
	m.Calls.SearchRegisteredModels = append(m.Calls.SearchRegisteredModels, filter)
	if m.Impl.SearchRegisteredModels == nil {
		m.notImplemented("SearchRegisteredModels")
	}
	return m.Impl.SearchRegisteredModels(ctx, filter)
}

func (m *MockClient) GetLatestVersions(ctx context.Context, name string, stages []registry.Stage) ([]registry.ModelVersion, error) {
	m.t.Helper()
	m.Calls.GetLatestVersions = append(m.Calls.GetLatestVersions, GetLatestVersionsArgs{Name: name, Stages: stages})
	if m.Impl.GetLatestVersions == nil {
		m.notImplemented("GetLatestVersions")
	}
	return m.Impl.GetLatestVersions(ctx, name, stages)
}

func (m *MockClient) CreateModelVersion(ctx context.Context, name, source, runId, description string, tags []apitags.Tag) (registry.ModelVersion, error) {
	m.t.Helper()
	m.Calls.CreateModelVersion = append(m.Calls.CreateModelVersion, CreateModelVersionArgs{
		Name: name, Source: source, RunId: runId, Description: description, Tags: tags,
	})
	if m.Impl.CreateModelVersion == nil {
		m.notImplemented("CreateModelVersion")
	}
	return m.Impl.CreateModelVersion(ctx, name, source, runId, description, tags)
}

func (m *MockClient) GetModelVersion(ctx context.Context, name string, version registry.Version) (registry.ModelVersion, error) {
	m.t.Helper()
	m.Calls.GetModelVersion = append(m.Calls.GetModelVersion, NameVersionArgs{Name: name, Version: version})
	if m.Impl.GetModelVersion == nil {
		m.notImplemented("GetModelVersion")
	}
	return m.Impl.GetModelVersion(ctx, name, version)
}

func (m *MockClient) UpdateModelVersion(ctx context.Context, name string, version registry.Version, description string) (registry.ModelVersion, error) {
	m.t.Helper()
	m.Calls.UpdateModelVersion = append(m.Calls.UpdateModelVersion, UpdateModelVersionArgs{Name: name, Version: version, Description: description})
	if m.Impl.UpdateModelVersion == nil {
		m.notImplemented("UpdateModelVersion")
	}
	return m.Impl.UpdateModelVersion(ctx, name, version, description)
}

func (m *MockClient) DeleteModelVersion(ctx context.Context, name string, version registry.Version) error {
	m.t.Helper()
	m.Calls.DeleteModelVersion = append(m.Calls.DeleteModelVersion, NameVersionArgs{Name: name, Version: version})
	if m.Impl.DeleteModelVersion == nil {
		m.notImplemented("DeleteModelVersion")
	}
	return m.Impl.DeleteModelVersion(ctx, name, version)
}

func (m *MockClient) TransitionModelVersionStage(ctx context.Context, name string, version registry.Version, stage registry.Stage, archiveExisting bool) (registry.ModelVersion, error) {
	m.t.Helper()
	m.Calls.TransitionModelVersionStage = append(m.Calls.TransitionModelVersionStage, TransitionArgs{
		Name: name, Version: version, Stage: stage, ArchiveExisting: archiveExisting,
	})
	if m.Impl.TransitionModelVersionStage == nil {
		m.notImplemented("TransitionModelVersionStage")
	}
	return m.Impl.TransitionModelVersionStage(ctx, name, version, stage, archiveExisting)
}

func (m *MockClient) SearchModelVersions(ctx context.Context, filter string) ([]registry.ModelVersion, error) {
	m.t.Helper()
	m.Calls.SearchModelVersions = append(m.Calls.SearchModelVersions, filter)
	if m.Impl.SearchModelVersions == nil {
		m.notImplemented("SearchModelVersions")
	}
	return m.Impl.SearchModelVersions(ctx, filter)
}

func (m *MockClient) GetModelVersionDownloadUri(ctx context.Context, name string, version registry.Version) (string, error) {
	m.t.Helper()
	m.Calls.GetModelVersionDownloadUri = append(m.Calls.GetModelVersionDownloadUri, NameVersionArgs{Name: name, Version: version})
	if m.Impl.GetModelVersionDownloadUri == nil {
		m.notImplemented("GetModelVersionDownloadUri")
	}
	return m.Impl.GetModelVersionDownloadUri(ctx, name, version)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
