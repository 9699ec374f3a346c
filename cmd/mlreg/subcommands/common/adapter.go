package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/opst/mlreg/cmd/mlreg/config/profiles"
	"github.com/opst/mlreg/cmd/mlreg/env"
	cerr "github.com/opst/mlreg/cmd/mlreg/errors"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	"github.com/youta-t/flarc"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTaskWithCommonFlag takes CommonFlags out of positional parameters,
// and passes them to task with a logger prefixed by the command name.
func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		return task(ctx, logger.ForCommand(cl.Stderr(), cl.Fullname()), commonFlag, cl, newpos)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	mlregEnv env.MLregEnv,
	client rest.MLflowClient,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask loads the profile and mlregenv, and passes them to task with a client.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		e, client, err := Connect(commonFlag)
		if err != nil {
			return err
		}
		return task(ctx, logger, *e, client, cl, params)
	})
}

// Connect loads the profile and mlregenv pointed by commonFlag, and creates a client.
func Connect(commonFlag CommonFlags) (*env.MLregEnv, rest.MLflowClient, error) {
	store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, cerr.NewCuiError(
				fmt.Sprintf("profile store (%s) is not found", commonFlag.ProfileStore),
				cerr.WithCause(err),
				cerr.WithHint("run `mlreg init PROFILE_FILE` first"),
			)
		}
		return nil, nil, cerr.NewCuiError(
			fmt.Sprintf("failed to load profile store (%s)", commonFlag.ProfileStore),
			cerr.WithCause(err),
		)
	}
	prof, ok := store[commonFlag.Profile]
	if !ok {
		return nil, nil, cerr.NewCuiError(
			fmt.Sprintf("profile '%s' is not found in the profile store (%s)", commonFlag.Profile, commonFlag.ProfileStore),
			cerr.WithHint("pass --profile, or run `mlreg init --profile NAME PROFILE_FILE`"),
		)
	}

	e, err := env.LoadMLregEnv(commonFlag.Env)
	if err != nil {
		return nil, nil, cerr.NewCuiError(
			fmt.Sprintf("failed to load %s", commonFlag.Env), cerr.WithCause(err),
		)
	}

	client, err := rest.NewClient(prof)
	if err != nil {
		hint := "your profile can be broken. Remove it and try `mlreg init` again"
		if errors.Is(err, profiles.ErrTokenExpired) {
			hint = "get a new token, and run `mlreg init` again"
		}
		return nil, nil, cerr.NewCuiError(
			fmt.Sprintf("cannot connect with profile %s (in %s)", commonFlag.Profile, commonFlag.ProfileStore),
			cerr.WithCause(err),
			cerr.WithHint(hint),
		)
	}
	return e, client, nil
}
