package register_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/rest/mock"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/internal/commandline"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/model/register"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
	"github.com/opst/mlreg/pkg/utils/args"
	"github.com/opst/mlreg/pkg/utils/retry"
	"github.com/opst/mlreg/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func TestRegisterCommand(t *testing.T) {
	type When struct {
		flag    register.Flag
		env     env.MLregEnv
		name    string
		version registry.ModelVersion
		err     error
	}
	type Then struct {
		err  error
		tags []apitags.Tag
		wait bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			called := false
			task := func(
				_ context.Context, _ *log.Logger, _ rest.MLflowClient,
				uri string, name string, tags []apitags.Tag,
				wait retry.Backoff, timeout time.Duration,
			) (registry.ModelVersion, error) {
				called = true
				if uri != "runs:/r1/model" || name != when.name {
					t.Errorf("(uri, name) = (%s, %s)", uri, name)
				}
				if diff := cmp.Diff(then.tags, tags); diff != "" {
					t.Errorf("tags (-expected +actual):\n%s", diff)
				}
				if (wait != nil) != then.wait {
					t.Errorf("wait: %v", wait != nil)
				}
				if timeout != when.flag.Timeout {
					t.Errorf("timeout: %s", timeout)
				}
				return when.version, when.err
			}

			stdout := new(strings.Builder)
			err := register.Task(task)(
				context.Background(), logger.Null(), when.env, nil,
				commandline.MockCommandline[register.Flag]{
					Stdout_: stdout,
					Stderr_: io.Discard,
					Flags_:  when.flag,
					Args_: map[string][]string{
						register.ARG_URI:  {"runs:/r1/model"},
						register.ARG_NAME: {when.name},
					},
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("wrong error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !called {
				t.Fatal("task is not called")
			}
			actual := registry.ModelVersion{}
			if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(when.version, actual); diff != "" {
				t.Errorf("stdout (-expected +actual):\n%s", diff)
			}
		}
	}

	tags := args.Tags{}
	tags.Set("by:cli")

	t.Run("it registers with tags from mlregenv and flags, and waits", theory(
		When{
			flag: register.Flag{Tag: &tags, Interval: time.Second, Timeout: time.Minute},
			env:  env.MLregEnv{Tag: []apitags.Tag{{Key: "team", Value: "pricing"}}},
			name: "airbnb_rf_model",
			version: registry.ModelVersion{
				Name: "airbnb_rf_model", Version: 1, Status: registry.Ready,
			},
		},
		Then{
			tags: []apitags.Tag{{Key: "team", Value: "pricing"}, {Key: "by", Value: "cli"}},
			wait: true,
		},
	))

	t.Run("--no-wait does not wait", theory(
		When{
			flag: register.Flag{NoWait: true, Timeout: time.Minute},
			name: "airbnb_rf_model",
			version: registry.ModelVersion{
				Name: "airbnb_rf_model", Version: 2, Status: registry.PendingRegistration,
			},
		},
		Then{tags: []apitags.Tag{}, wait: false},
	))

	t.Run("empty name is usage error", theory(
		When{flag: register.Flag{}, name: ""},
		Then{err: flarc.ErrUsage},
	))

	{
		expected := errors.New("fake error")
		t.Run("it returns error from task", theory(
			When{flag: register.Flag{}, name: "m", err: expected},
			Then{err: expected, tags: []apitags.Tag{}, wait: true},
		))
	}
}

func TestRunRegister(t *testing.T) {
	newMock := func(t *testing.T, statuses ...registry.Status) *mock.MockClient {
		m := mock.New(t)
		m.Impl.GetRun = func(ctx context.Context, runId string) (tracking.Run, error) {
			return tracking.Run{Info: tracking.RunInfo{RunId: runId, ArtifactUri: "mlflow-artifacts:/0/" + runId + "/artifacts"}}, nil
		}
		m.Impl.CreateRegisteredModel = func(ctx context.Context, name, description string, tags []apitags.Tag) (registry.RegisteredModel, error) {
			return registry.RegisteredModel{}, apierr.ErrResourceAlreadyExists
		}
		m.Impl.CreateModelVersion = func(ctx context.Context, name, source, runId, description string, tags []apitags.Tag) (registry.ModelVersion, error) {
			return registry.ModelVersion{Name: name, Version: 3, Source: source, RunId: runId, Status: registry.PendingRegistration}, nil
		}
		m.Impl.GetModelVersion = func(ctx context.Context, name string, version registry.Version) (registry.ModelVersion, error) {
			status := statuses[0]
			if 1 < len(statuses) {
				statuses = statuses[1:]
			}
			return registry.ModelVersion{Name: name, Version: version, Status: status}, nil
		}
		return m
	}

	t.Run("without wait, it returns the pending version", func(t *testing.T) {
		m := newMock(t)
		mv := try.To(register.RunRegister(
			context.Background(), logger.Null(), m, "runs:/r1/model", "airbnb", nil, nil, time.Second,
		)).OrFatal(t)
		if mv.Status != registry.PendingRegistration || mv.Source != "mlflow-artifacts:/0/r1/artifacts/model" {
			t.Errorf("version: %+v", mv)
		}
		if len(m.Calls.GetModelVersion) != 0 {
			t.Errorf("it should not poll: %+v", m.Calls.GetModelVersion)
		}
	})

	t.Run("with wait, it polls until READY", func(t *testing.T) {
		m := newMock(t, registry.PendingRegistration, registry.PendingRegistration, registry.Ready)
		mv := try.To(register.RunRegister(
			context.Background(), logger.Null(), m, "runs:/r1/model", "airbnb", nil,
			retry.StaticBackoff(time.Millisecond), time.Second,
		)).OrFatal(t)
		if mv.Status != registry.Ready || mv.Version != 3 {
			t.Errorf("version: %+v", mv)
		}
		if len(m.Calls.GetModelVersion) != 3 {
			t.Errorf("polls: %d", len(m.Calls.GetModelVersion))
		}
	})

	t.Run("with wait, it gives up at timeout", func(t *testing.T) {
		m := newMock(t, registry.PendingRegistration)
		_, err := register.RunRegister(
			context.Background(), logger.Null(), m, "runs:/r1/model", "airbnb", nil,
			retry.StaticBackoff(5*time.Millisecond), 30*time.Millisecond,
		)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("with wait, failed registration is an error", func(t *testing.T) {
		m := newMock(t, registry.FailedRegistration)
		_, err := register.RunRegister(
			context.Background(), logger.Null(), m, "runs:/r1/model", "airbnb", nil,
			retry.StaticBackoff(time.Millisecond), time.Second,
		)
		if !errors.Is(err, models.ErrRegistrationFailed) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
