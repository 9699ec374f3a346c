package model

import (
	model_describe "github.com/opst/mlreg/cmd/mlreg/subcommands/model/describe"
	model_find "github.com/opst/mlreg/cmd/mlreg/subcommands/model/find"
	model_register "github.com/opst/mlreg/cmd/mlreg/subcommands/model/register"
	model_rm "github.com/opst/mlreg/cmd/mlreg/subcommands/model/rm"
	model_show "github.com/opst/mlreg/cmd/mlreg/subcommands/model/show"
	model_version "github.com/opst/mlreg/cmd/mlreg/subcommands/model/version"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	register, err := model_register.New()
	if err != nil {
		return nil, err
	}
	show, err := model_show.New()
	if err != nil {
		return nil, err
	}
	find, err := model_find.New()
	if err != nil {
		return nil, err
	}
	describe, err := model_describe.New()
	if err != nil {
		return nil, err
	}
	rm, err := model_rm.New()
	if err != nil {
		return nil, err
	}
	version, err := model_version.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate registered models.",
		struct{}{},
		flarc.WithSubcommand("register", register),
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("find", find),
		flarc.WithSubcommand("describe", describe),
		flarc.WithSubcommand("rm", rm),
		flarc.WithSubcommand("version", version),
	)
}
