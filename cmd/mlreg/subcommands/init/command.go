package init

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/opst/mlreg/cmd/mlreg/config/profiles"
	cerr "github.com/opst/mlreg/cmd/mlreg/errors"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"
)

const ARG_PROFILE_FILE = "PROFILE_FILE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Initialize this directory as a project tracked by an MLflow server.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_PROFILE_FILE, Required: true,
				Help: "filepath to a profile file, which tells how to reach the tracking server.",
			},
		},
		common.NewTaskWithCommonFlag(Task(".")),
		flarc.WithDescription(`
Register a profile into your profile store, and use it in this directory.

A profile file is a YAML like below:

	apiRoot: https://mlflow.example.com
	token: <bearer token>     # optional
	cert:
	  ca: <base64 encoded PEM> # optional

The name of the profile is given by "--profile" (default: "default").
"{{ .Command }}" writes the name into ".mlregprofile" in the current directory,
so commands in the directory and its descendants use the profile.
`),
	)
}

// Task registers the profile into the store, and writes .mlregprofile in projectDir.
func Task(projectDir string) common.TaskWithCommonFlag[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		profFile := cl.Args()[ARG_PROFILE_FILE][0]

		store, err := profiles.LoadProfileStore(cf.ProfileStore)
		if errors.Is(err, profiles.ErrProfileStoreNotFound) {
			store = profiles.ProfileStore{}
		} else if err != nil {
			return cerr.NewCuiError(
				fmt.Sprintf("failed to load profile store (%s)", cf.ProfileStore),
				cerr.WithCause(err),
			)
		}

		newProf := new(profiles.Profile)
		{
			content, err := os.ReadFile(profFile)
			if err != nil {
				return fmt.Errorf("failed to read profile file (%s): %w", profFile, err)
			}
			if err := yaml.Unmarshal(content, newProf); err != nil {
				return fmt.Errorf("failed to parse profile file (%s): %w", profFile, err)
			}
		}
		if err := newProf.Verify(time.Now()); err != nil {
			return fmt.Errorf("%s: %w", profFile, err)
		}

		store[cf.Profile] = newProf
		if err := store.Save(cf.ProfileStore); err != nil {
			return cerr.NewCuiError(
				fmt.Sprintf("failed to save profile store (%s)", cf.ProfileStore),
				cerr.WithCause(err),
			)
		}
		logger.Printf("profile %s is saved to %s", cf.Profile, cf.ProfileStore)

		dotfile := filepath.Join(projectDir, common.ProfileFile)
		if err := os.WriteFile(dotfile, []byte(cf.Profile), os.FileMode(0600)); err != nil {
			return fmt.Errorf("failed to write %s: %w", dotfile, err)
		}
		return nil
	}
}
