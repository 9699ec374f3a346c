package describe_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest/mock"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/internal/commandline"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	version_describe "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/describe"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/internal/versionarg"
	"github.com/opst/mlreg/pkg/api/types/registry"
)

func TestDescribeCommand(t *testing.T) {
	const description = "This model version is a random forest containing 300 decision trees and a max depth of 10."

	m := mock.New(t)
	m.Impl.UpdateModelVersion = func(ctx context.Context, name string, version registry.Version, description string) (registry.ModelVersion, error) {
		return registry.ModelVersion{Name: name, Version: version, Description: description}, nil
	}

	stdout := new(strings.Builder)
	err := version_describe.Task(version_describe.RunDescribeVersion)(
		context.Background(), logger.Null(), env.MLregEnv{}, m,
		commandline.MockCommandline[struct{}]{
			Stdout_: stdout, Stderr_: io.Discard,
			Args_: map[string][]string{
				versionarg.ARG_NAME:              {"airbnb"},
				versionarg.ARG_VERSION:           {"2"},
				version_describe.ARG_DESCRIPTION: {description},
			},
		},
		[]any{},
	)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(
		[]mock.UpdateModelVersionArgs{{Name: "airbnb", Version: 2, Description: description}},
		m.Calls.UpdateModelVersion,
	); diff != "" {
		t.Errorf("calls (-expected +actual):\n%s", diff)
	}
	actual := registry.ModelVersion{}
	if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
		t.Fatal(err)
	}
	if actual.Description != description || actual.Version != 2 {
		t.Errorf("stdout: %+v", actual)
	}
}
