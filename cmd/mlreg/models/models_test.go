package models_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/cmd/mlreg/config/profiles"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/rest/mock"
	"github.com/opst/mlreg/internal/testutils/mlflowserver"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
	xcmp "github.com/opst/mlreg/pkg/cmp"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/flavor"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/modeluri"
	"github.com/opst/mlreg/pkg/utils/retry"
	"github.com/opst/mlreg/pkg/utils/try"
)

func fitted(t *testing.T, seed uint64) (*forest.Forest, dataset.Frame) {
	t.Helper()
	x := dataset.Frame{Columns: []string{"bedrooms", "accommodates"}}
	y := []float64{}
	for i := range 30 {
		b, a := float64(i%4), float64(i%6+1)
		x.Rows = append(x.Rows, []float64{b, a})
		y = append(y, 50*b+10*a)
	}
	p := forest.DefaultParams()
	p.NEstimators = 5
	p.MaxDepth = 4
	p.Seed = seed
	return try.To(forest.Fit(context.Background(), x, y, p)).OrFatal(t), x
}

func serve(t *testing.T) (*mlflowserver.Server, rest.MLflowClient) {
	t.Helper()
	s := mlflowserver.New()
	srv := mlflowserver.Start(t, s)
	return s, try.To(rest.NewClient(&profiles.Profile{ApiRoot: srv.URL})).OrFatal(t)
}

func TestLogRegisterLoad(t *testing.T) {
	ctx := context.Background()
	s, client := serve(t)

	f, x := fitted(t, 42)
	sig := try.To(flavor.InferSignature(x, "price")).OrFatal(t)
	example := x.Head(3)

	run := try.To(client.CreateRun(ctx, "0", "RF Model", nil)).OrFatal(t)
	uri := try.To(models.LogModel(ctx, client, run.Info, "model", f, sig, &example)).OrFatal(t)
	if uri.String() != "runs:/"+run.Info.RunId+"/model" {
		t.Errorf("uri: %s", uri)
	}

	for _, name := range []string{flavor.MLmodelFile, flavor.ModelDataFile, flavor.InputExampleFile} {
		if _, ok := s.Artifact("0/" + run.Info.RunId + "/artifacts/model/" + name); !ok {
			t.Errorf("artifact %s is not uploaded", name)
		}
	}
	logged := try.To(client.GetRun(ctx, run.Info.RunId)).OrFatal(t)
	if h, ok := apitags.Lookup(logged.Data.Tags, apitags.KeyLogModel); !ok || !strings.Contains(h, `"go_forest"`) {
		t.Errorf("model is not logged: %s", h)
	}

	mv := try.To(models.Register(ctx, client, uri.String(), "airbnb_rf_model", nil)).OrFatal(t)
	if mv.Version != 1 || mv.RunId != run.Info.RunId || mv.Source != run.Info.ArtifactUri+"/model" {
		t.Errorf("registered: %+v", mv)
	}
	ready := try.To(models.WaitUntilReady(ctx, client, mv.Name, mv.Version, retry.StaticBackoff(time.Millisecond))).OrFatal(t)
	if ready.Status != registry.Ready {
		t.Errorf("status: %s", ready.Status)
	}

	// registering again makes a new version of the existing registered model.
	mv2 := try.To(models.Register(ctx, client, uri.String(), "airbnb_rf_model", nil)).OrFatal(t)
	if mv2.Version != 2 {
		t.Errorf("second version: %d", mv2.Version)
	}

	expected := try.To(f.Predict(x)).OrFatal(t)
	for _, u := range []string{
		uri.String(),
		"models:/airbnb_rf_model/1",
		"models:/airbnb_rf_model/latest",
	} {
		t.Run("load "+u, func(t *testing.T) {
			loaded := try.To(models.Load(ctx, client, u)).OrFatal(t)
			// columns in another order are accepted.
			swapped := try.To(x.Reorder([]string{"accommodates", "bedrooms"})).OrFatal(t)
			pred := try.To(loaded.Predict(swapped)).OrFatal(t)
			if !xcmp.SliceApproxEq(pred, expected, 1e-9) {
				t.Errorf("predictions:\n%v\n%v", pred, expected)
			}
		})
	}

	t.Run("latest resolves to the greatest version", func(t *testing.T) {
		loaded := try.To(models.Load(ctx, client, "models:/airbnb_rf_model/latest")).OrFatal(t)
		if loaded.Version == nil || loaded.Version.Version != 2 {
			t.Errorf("version: %+v", loaded.Version)
		}
	})

	t.Run("stage without versions", func(t *testing.T) {
		_, err := models.Load(ctx, client, "models:/airbnb_rf_model/Production")
		if !errors.Is(err, models.ErrNoVersion) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("stage", func(t *testing.T) {
		try.To(client.TransitionModelVersionStage(ctx, "airbnb_rf_model", 1, registry.StageStaging, false)).OrFatal(t)
		loaded := try.To(models.Load(ctx, client, "models:/airbnb_rf_model/staging")).OrFatal(t)
		if loaded.Version.Version != 1 {
			t.Errorf("version: %d", loaded.Version.Version)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		loaded := try.To(models.Load(ctx, client, uri.String())).OrFatal(t)
		_, err := loaded.Predict(dataset.Frame{Columns: []string{"bedrooms"}, Rows: [][]float64{{1}}})
		if !errors.Is(err, models.ErrSchemaUnmatch) || !errors.Is(err, dataset.ErrNoColumn) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestLoad_NoFlavor(t *testing.T) {
	ctx := context.Background()
	_, client := serve(t)

	run := try.To(client.CreateRun(ctx, "0", "", nil)).OrFatal(t)
	mlmodel := "flavors:\n  sklearn:\n    pickled_model: model.pkl\n"
	if err := client.UploadArtifact(ctx, run.Info.ArtifactUri, "model/MLmodel", strings.NewReader(mlmodel)); err != nil {
		t.Fatal(err)
	}

	_, err := models.Load(ctx, client, modeluri.RunsURI(run.Info.RunId, "model").String())
	if !errors.Is(err, flavor.ErrNoFlavor) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	run := tracking.Run{Info: tracking.RunInfo{RunId: "r1", ArtifactUri: "mlflow-artifacts:/0/r1/artifacts/"}}

	type When struct {
		uri       string
		createErr error
	}
	type Then struct {
		err           error
		source        string
		runId         string
		createVersion bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			client.Impl.GetRun = func(ctx context.Context, runId string) (tracking.Run, error) {
				return run, nil
			}
			client.Impl.CreateRegisteredModel = func(ctx context.Context, name, description string, tags []apitags.Tag) (registry.RegisteredModel, error) {
				return registry.RegisteredModel{Name: name}, when.createErr
			}
			client.Impl.CreateModelVersion = func(ctx context.Context, name, source, runId, description string, tags []apitags.Tag) (registry.ModelVersion, error) {
				return registry.ModelVersion{Name: name, Version: 1, Source: source, RunId: runId}, nil
			}

			mv, err := models.Register(ctx, client, when.uri, "m", []apitags.Tag{{Key: "team", Value: "pricing"}})
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
			} else if err != nil {
				t.Fatal(err)
			}

			if !then.createVersion {
				if len(client.Calls.CreateModelVersion) != 0 {
					t.Errorf("version is created: %+v", client.Calls.CreateModelVersion)
				}
				return
			}
			want := []mock.CreateModelVersionArgs{{
				Name: "m", Source: then.source, RunId: then.runId,
				Tags: []apitags.Tag{{Key: "team", Value: "pricing"}},
			}}
			if !cmp.Equal(client.Calls.CreateModelVersion, want) {
				t.Errorf("calls:\n%s", cmp.Diff(want, client.Calls.CreateModelVersion))
			}
			if mv.Source != then.source {
				t.Errorf("source: %s", mv.Source)
			}
		}
	}

	t.Run("runs:/ uri is resolved with the run", theory(
		When{uri: "runs:/r1/model"},
		Then{source: "mlflow-artifacts:/0/r1/artifacts/model", runId: "r1", createVersion: true},
	))
	t.Run("existing registered model is reused", theory(
		When{uri: "runs:/r1/sklearn-model", createErr: apierr.ErrorMessage{ErrorCode: apierr.ResourceAlreadyExists}},
		Then{source: "mlflow-artifacts:/0/r1/artifacts/sklearn-model", runId: "r1", createVersion: true},
	))
	t.Run("artifact uri is used as it is", theory(
		When{uri: "file:///models/rf"},
		Then{source: "file:///models/rf", createVersion: true},
	))
	t.Run("other errors on creating registered model", theory(
		When{uri: "runs:/r1/model", createErr: apierr.ErrorMessage{ErrorCode: apierr.InvalidParameterValue}},
		Then{err: apierr.ErrInvalidParameterValue},
	))
	t.Run("malformed uri", theory(
		When{uri: "runs:/r1"},
		Then{err: modeluri.ErrInvalidURI},
	))
}

func TestWaitUntilReady(t *testing.T) {
	type When struct {
		statuses []registry.Status
		timeout  time.Duration
	}
	type Then struct {
		err   error
		polls int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			n := 0
			client.Impl.GetModelVersion = func(ctx context.Context, name string, version registry.Version) (registry.ModelVersion, error) {
				st := when.statuses[min(n, len(when.statuses)-1)]
				n += 1
				return registry.ModelVersion{Name: name, Version: version, Status: st, StatusMessage: "msg"}, nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), when.timeout)
			defer cancel()
			mv, err := models.WaitUntilReady(ctx, client, "m", 3, retry.StaticBackoff(5*time.Millisecond))
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
			} else {
				if err != nil {
					t.Fatal(err)
				}
				if mv.Status != registry.Ready {
					t.Errorf("status: %s", mv.Status)
				}
			}
			if then.polls != 0 && n != then.polls {
				t.Errorf("polls: %d", n)
			}
		}
	}

	t.Run("ready at once", theory(
		When{statuses: []registry.Status{registry.Ready}, timeout: time.Second},
		Then{polls: 1},
	))
	t.Run("ready after pending", theory(
		When{statuses: []registry.Status{registry.PendingRegistration, registry.PendingRegistration, registry.Ready}, timeout: time.Second},
		Then{polls: 3},
	))
	t.Run("failed", theory(
		When{statuses: []registry.Status{registry.PendingRegistration, registry.FailedRegistration}, timeout: time.Second},
		Then{err: models.ErrRegistrationFailed, polls: 2},
	))
	t.Run("pending forever", theory(
		When{statuses: []registry.Status{registry.PendingRegistration}, timeout: 30 * time.Millisecond},
		Then{err: context.DeadlineExceeded},
	))
}

func TestLatestVersion(t *testing.T) {
	client := mock.New(t)
	client.Impl.SearchModelVersions = func(ctx context.Context, filter string) ([]registry.ModelVersion, error) {
		switch filter {
		case "name = 'airbnb'":
			return []registry.ModelVersion{{Name: "airbnb", Version: 1}, {Name: "airbnb", Version: 3}, {Name: "airbnb", Version: 2}}, nil
		default:
			return []registry.ModelVersion{}, nil
		}
	}

	mv := try.To(models.LatestVersion(context.Background(), client, "airbnb")).OrFatal(t)
	if mv.Version != 3 {
		t.Errorf("latest: %d", mv.Version)
	}

	if _, err := models.LatestVersion(context.Background(), client, "empty"); !errors.Is(err, models.ErrNoVersion) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNameFilter(t *testing.T) {
	if got := models.NameFilter("it's"); got != `name = 'it\'s'` {
		t.Errorf("filter: %s", got)
	}
}

func TestTrain_ConstantLabels(t *testing.T) {
	ctx := context.Background()
	s, client := serve(t)

	x := dataset.Frame{Columns: []string{"bedrooms"}}
	y := []float64{}
	for i := range 8 {
		x.Rows = append(x.Rows, []float64{float64(i)})
		y = append(y, 100)
	}
	split := try.To(dataset.TrainTestSplit(x, y, 0.25, 42)).OrFatal(t)
	p := forest.DefaultParams()
	p.NEstimators = 3

	trained := try.To(models.Train(ctx, client, split, models.TrainSpec{
		Experiment: "Default", RunName: "RF Model", Label: "price", Params: p,
	})).OrFatal(t)

	if _, ok := trained.Metrics[models.MetricR2]; ok {
		t.Errorf("r2 should be dropped: %v", trained.Metrics)
	}
	if mse, ok := trained.Metrics[models.MetricMSE]; !ok || mse != 0 {
		t.Errorf("mse: %v", trained.Metrics)
	}

	run, ok := s.Run(trained.Run.RunId)
	if !ok {
		t.Fatalf("run %s is not found", trained.Run.RunId)
	}
	if run.Info.Status != tracking.Finished {
		t.Errorf("run status: %s", run.Info.Status)
	}
	if _, ok := run.Metric(models.MetricR2); ok {
		t.Error("r2 is logged")
	}
	if v, ok := run.Metric(models.MetricMSE); !ok || v != 0 {
		t.Errorf("mse: %v", v)
	}
}
