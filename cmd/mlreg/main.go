package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	subinit "github.com/opst/mlreg/cmd/mlreg/subcommands/init"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	submodel "github.com/opst/mlreg/cmd/mlreg/subcommands/model"
	subpredict "github.com/opst/mlreg/cmd/mlreg/subcommands/predict"
	subserve "github.com/opst/mlreg/cmd/mlreg/subcommands/serve"
	subtrain "github.com/opst/mlreg/cmd/mlreg/subcommands/train"
	subver "github.com/opst/mlreg/cmd/mlreg/subcommands/version"
	subwalk "github.com/opst/mlreg/cmd/mlreg/subcommands/walkthrough"
	"github.com/opst/mlreg/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	train := try.To(subtrain.New()).OrFatal(logger)
	model := try.To(submodel.New()).OrFatal(logger)
	predict := try.To(subpredict.New()).OrFatal(logger)
	serve := try.To(subserve.New()).OrFatal(logger)
	walkthrough := try.To(subwalk.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	mlreg := try.To(
		flarc.NewCommandGroup(
			"mlreg: model tracking and registry commandline interface",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("train", train),
			flarc.WithSubcommand("model", model),
			flarc.WithSubcommand("predict", predict),
			flarc.WithSubcommand("serve", serve),
			flarc.WithSubcommand("walkthrough", walkthrough),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, mlreg, flarc.WithHelp(true)))
}
