package version

import (
	version_describe "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/describe"
	version_find "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/find"
	version_rm "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/rm"
	version_show "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/show"
	version_stage "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/stage"
	version_wait "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version/wait"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	show, err := version_show.New()
	if err != nil {
		return nil, err
	}
	find, err := version_find.New()
	if err != nil {
		return nil, err
	}
	describe, err := version_describe.New()
	if err != nil {
		return nil, err
	}
	stage, err := version_stage.New()
	if err != nil {
		return nil, err
	}
	wait, err := version_wait.New()
	if err != nil {
		return nil, err
	}
	rm, err := version_rm.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate versions of a registered model.",
		struct{}{},
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("find", find),
		flarc.WithSubcommand("describe", describe),
		flarc.WithSubcommand("stage", stage),
		flarc.WithSubcommand("wait", wait),
		flarc.WithSubcommand("rm", rm),
	)
}
