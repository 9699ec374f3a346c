package find

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Filter string `flag:"filter" alias:"f" metavar:"EXPR" help:"search filter, like \"name LIKE 'airbnb%'\"."`
	Prefix string `flag:"prefix" help:"find registered models whose name starts with this. Ignored when --filter is passed."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Find registered models.",
		Flag{},
		flarc.Args{},
		common.NewTask(Task(RunFindModel)),
		flarc.WithDescription(`
Find registered models, and print them as a JSON array.

If no condition is specified, all registered models are displayed.

Example
-------

	{{ .Command }} --filter "name = 'airbnb_rf_model'"

	{{ .Command }} --prefix airbnb_
`),
	)
}

// PrefixFilter is the search filter selecting registered models whose name starts with prefix.
//
// "_" and "%" in prefix are wildcards of LIKE, as they are.
func PrefixFilter(prefix string) string {
	return fmt.Sprintf("name LIKE '%s%%'", strings.ReplaceAll(prefix, "'", `\'`))
}

func Task(
	find func(context.Context, rest.MLflowClient, string) ([]registry.RegisteredModel, error),
) common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.MLregEnv,
		client rest.MLflowClient,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		filter := flags.Filter
		if filter == "" && flags.Prefix != "" {
			filter = PrefixFilter(flags.Prefix)
		}

		rms, err := find(ctx, client, filter)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(rms)
	}
}

func RunFindModel(ctx context.Context, client rest.MLflowClient, filter string) ([]registry.RegisteredModel, error) {
	return client.SearchRegisteredModels(ctx, filter)
}
