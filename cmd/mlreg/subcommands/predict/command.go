package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Data   string `flag:"data" alias:"d" metavar:"FILE" help:"input table. \"-\" reads stdin."`
	Format string `flag:"format" metavar:"csv|json" help:"format of --data. json is the pandas \"split\" orient."`
	Head   int    `flag:"head" help:"predict only the first N rows. 0 means all rows."`
}

const ARG_URI = "MODEL_URI"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Load a model and predict with it.",
		Flag{
			Data:   "-",
			Format: "csv",
		},
		flarc.Args{
			{
				Name: ARG_URI, Required: true,
				Help: "model to be loaded: runs:/<run_id>/<path>, models:/<name>/<version|stage|latest> or a directory by train --save-dir.",
			},
		},
		common.NewTask(Task(RunPredict)),
		flarc.WithDescription(`
Load a model and predict with it, then print predictions as {"predictions": [...]}.

Columns not in the model signature (like the label) are ignored.

Example
-------

	{{ .Command }} models:/airbnb_rf_model/1 --data test.csv

	{{ .Command }} models:/airbnb_rf_model/Production --format json < request.json
`),
	)
}

// ReadFrame reads the input table in the format.
func ReadFrame(r io.Reader, format string) (dataset.Frame, error) {
	switch strings.ToLower(format) {
	case "csv":
		t, err := dataset.LoadCSV(r)
		if err != nil {
			return dataset.Frame{}, err
		}
		return t.Frame(), nil
	case "json":
		b, err := io.ReadAll(r)
		if err != nil {
			return dataset.Frame{}, err
		}
		return dataset.DecodeRequest(b)
	}
	return dataset.Frame{}, fmt.Errorf("%w: unknown format: %s", flarc.ErrUsage, format)
}

func Task(
	predict func(context.Context, *log.Logger, rest.MLflowClient, string, dataset.Frame) ([]float64, error),
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
		if flags.Head < 0 {
			return fmt.Errorf("%w: --head should not be negative", flarc.ErrUsage)
		}

		var in io.Reader = cl.Stdin()
		if flags.Data != "-" {
			f, err := os.Open(flags.Data)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		x, err := ReadFrame(in, flags.Format)
		if err != nil {
			return err
		}
		if 0 < flags.Head {
			x = x.Head(flags.Head)
		}

		pred, err := predict(ctx, logger, client, cl.Args()[ARG_URI][0], x)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(models.Predictions{Predictions: pred})
	}
}

// RunPredict loads the model and predicts.
//
// uri can also be a local directory written by `train --save-dir`.
func RunPredict(ctx context.Context, logger *log.Logger, client rest.MLflowClient, uri string, x dataset.Frame) ([]float64, error) {
	var loaded *models.Loaded
	if st, err := os.Stat(uri); err == nil && st.IsDir() {
		logger.Printf("Loading model from directory: '%s'", uri)
		if loaded, err = models.LoadDir(uri); err != nil {
			return nil, err
		}
	} else {
		logger.Printf("Loading registered model version from URI: '%s'", uri)
		if loaded, err = models.Load(ctx, client, uri, models.WithProgress(logger.Writer())); err != nil {
			return nil, err
		}
	}
	return loaded.Predict(x)
}
