package rm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest/mock"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/internal/commandline"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/internal/versionarg"
	version_rm "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/rm"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/registry"
)

func TestDeleteCommand(t *testing.T) {
	type When struct {
		err error
	}
	type Then struct {
		err error
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			m := mock.New(t)
			m.Impl.DeleteModelVersion = func(ctx context.Context, name string, version registry.Version) error {
				return when.err
			}
			err := version_rm.Task(version_rm.RunDeleteVersion)(
				context.Background(), logger.Null(), env.MLregEnv{}, m,
				commandline.MockCommandline[struct{}]{
					Args_: map[string][]string{
						versionarg.ARG_NAME:    {"airbnb"},
						versionarg.ARG_VERSION: {"1"},
					},
				},
				[]any{},
			)
			if !errors.Is(err, then.err) {
				t.Errorf("wrong error: (actual, expected) = (%v, %v)", err, then.err)
			}
			if len(m.Calls.DeleteModelVersion) != 1 || m.Calls.DeleteModelVersion[0] != (mock.NameVersionArgs{Name: "airbnb", Version: 1}) {
				t.Errorf("calls: %+v", m.Calls.DeleteModelVersion)
			}
		}
	}

	t.Run("it deletes the version", theory(When{}, Then{}))
	t.Run("when the version is in Production, the registry rejects", theory(
		When{err: apierr.ErrInvalidState},
		Then{err: apierr.ErrInvalidState},
	))
}
