package find_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest/mock"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/internal/commandline"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	version_find "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/find"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/opst/mlreg/pkg/utils/args"
)

func TestFindCommand(t *testing.T) {
	v1 := registry.ModelVersion{Name: "airbnb", Version: 1, CurrentStage: registry.StageArchived}
	v2 := registry.ModelVersion{Name: "airbnb", Version: 2, CurrentStage: registry.StageProduction}
	v3 := registry.ModelVersion{Name: "airbnb", Version: 3, CurrentStage: registry.StageStaging}

	type When struct {
		latest   bool
		stage    string
		versions []registry.ModelVersion
	}
	type Then struct {
		err    error
		list   []registry.ModelVersion
		single *registry.ModelVersion
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			m := mock.New(t)
			m.Impl.SearchModelVersions = func(ctx context.Context, filter string) ([]registry.ModelVersion, error) {
				return when.versions, nil
			}

			flag := version_find.Flag{Latest: when.latest, Stage: args.Parser(registry.ParseStage)}
			if when.stage != "" {
				if err := flag.Stage.Set(when.stage); err != nil {
					t.Fatal(err)
				}
			}

			stdout := new(strings.Builder)
			err := version_find.Task(version_find.RunFindVersion)(
				context.Background(), logger.Null(), env.MLregEnv{}, m,
				commandline.MockCommandline[version_find.Flag]{
					Stdout_: stdout, Stderr_: io.Discard, Flags_: flag,
					Args_: map[string][]string{version_find.ARG_NAME: {"airbnb"}},
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
			if diff := cmp.Diff([]string{"name = 'airbnb'"}, m.Calls.SearchModelVersions); diff != "" {
				t.Errorf("filter (-expected +actual):\n%s", diff)
			}

			if then.single != nil {
				actual := registry.ModelVersion{}
				if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(*then.single, actual); diff != "" {
					t.Errorf("stdout (-expected +actual):\n%s", diff)
				}
				return
			}
			actual := []registry.ModelVersion{}
			if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(then.list, actual); diff != "" {
				t.Errorf("stdout (-expected +actual):\n%s", diff)
			}
		}
	}

	t.Run("it prints all versions", theory(
		When{versions: []registry.ModelVersion{v3, v2, v1}},
		Then{list: []registry.ModelVersion{v3, v2, v1}},
	))
	t.Run("--stage selects versions in the stage", theory(
		When{stage: "production", versions: []registry.ModelVersion{v3, v2, v1}},
		Then{list: []registry.ModelVersion{v2}},
	))
	t.Run("--latest prints the greatest version", theory(
		When{latest: true, versions: []registry.ModelVersion{v1, v3, v2}},
		Then{single: &v3},
	))
	t.Run("--latest with --stage prints the greatest version in the stage", theory(
		When{latest: true, stage: "Archived", versions: []registry.ModelVersion{v1, v3, v2}},
		Then{single: &v1},
	))
	t.Run("--latest without versions is an error", theory(
		When{latest: true, versions: []registry.ModelVersion{}},
		Then{err: models.ErrNoVersion},
	))
}
