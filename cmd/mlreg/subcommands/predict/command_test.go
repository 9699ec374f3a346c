package predict_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/opst/mlreg/cmd/mlreg/config/profiles"
	"github.com/opst/mlreg/cmd/mlreg/env"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/internal/commandline"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/logger"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/predict"
	"github.com/opst/mlreg/internal/testutils/listings"
	"github.com/opst/mlreg/internal/testutils/mlflowserver"
	xcmp "github.com/opst/mlreg/pkg/cmp"
	"github.com/opst/mlreg/pkg/dataset"
	"github.com/opst/mlreg/pkg/forest"
	"github.com/opst/mlreg/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func TestReadFrame(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		x := try.To(predict.ReadFrame(strings.NewReader("a,b\n1,2\n3,4\n"), "CSV")).OrFatal(t)
		if x.Len() != 2 || len(x.Columns) != 2 {
			t.Errorf("frame: %+v", x)
		}
	})
	t.Run("json", func(t *testing.T) {
		x := try.To(predict.ReadFrame(
			strings.NewReader(`{"dataframe_split": {"columns": ["a", "b"], "data": [[1, 2]]}}`), "json",
		)).OrFatal(t)
		if x.Len() != 1 || x.Rows[0][1] != 2 {
			t.Errorf("frame: %+v", x)
		}
	})
	t.Run("unknown format", func(t *testing.T) {
		if _, err := predict.ReadFrame(strings.NewReader(""), "parquet"); !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestTask(t *testing.T) {
	type When struct {
		flag  predict.Flag
		stdin string
	}
	type Then struct {
		err  error
		rows int
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			testee := predict.Task(func(_ context.Context, _ *log.Logger, _ rest.MLflowClient, uri string, x dataset.Frame) ([]float64, error) {
				if uri != "models:/airbnb/1" {
					t.Errorf("uri: %s", uri)
				}
				if x.Len() != then.rows {
					t.Errorf("rows: %d", x.Len())
				}
				return make([]float64, x.Len()), nil
			})

			stdout := new(strings.Builder)
			err := testee(
				context.Background(), logger.Null(), env.MLregEnv{}, nil,
				commandline.MockCommandline[predict.Flag]{
					Stdin_: strings.NewReader(when.stdin), Stdout_: stdout, Stderr_: io.Discard,
					Flags_: when.flag,
					Args_:  map[string][]string{predict.ARG_URI: {"models:/airbnb/1"}},
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
			actual := models.Predictions{}
			if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
				t.Fatal(err)
			}
			if len(actual.Predictions) != then.rows {
				t.Errorf("stdout: %s", stdout)
			}
		}
	}

	t.Run("it reads csv from stdin", theory(
		When{flag: predict.Flag{Data: "-", Format: "csv"}, stdin: listings.CSV(10)},
		Then{rows: 10},
	))
	t.Run("--head limits rows", theory(
		When{flag: predict.Flag{Data: "-", Format: "csv", Head: 3}, stdin: listings.CSV(10)},
		Then{rows: 3},
	))
	t.Run("negative --head is usage error", theory(
		When{flag: predict.Flag{Data: "-", Format: "csv", Head: -1}},
		Then{err: flarc.ErrUsage},
	))
	t.Run("unknown --format is usage error", theory(
		When{flag: predict.Flag{Data: "-", Format: "xml"}},
		Then{err: flarc.ErrUsage},
	))
}

func TestRunPredict(t *testing.T) {
	ctx := context.Background()
	s := mlflowserver.New()
	srv := mlflowserver.Start(t, s)
	client := try.To(rest.NewClient(&profiles.Profile{ApiRoot: srv.URL})).OrFatal(t)

	table := try.To(dataset.LoadCSV(strings.NewReader(listings.CSV(40)))).OrFatal(t)
	x, y, err := table.XY("price")
	if err != nil {
		t.Fatal(err)
	}
	split := try.To(dataset.TrainTestSplit(x, y, 0.25, 42)).OrFatal(t)

	p := forest.DefaultParams()
	p.NEstimators = 5
	p.MaxDepth = 4
	saveDir := t.TempDir()
	trained := try.To(models.Train(ctx, client, split, models.TrainSpec{
		Experiment: "Default", RunName: "RF Model", Label: "price", Params: p,
	}, models.WithLocalCopy(saveDir))).OrFatal(t)
	expected := try.To(trained.Forest.Predict(x)).OrFatal(t)

	t.Run("from the tracking server", func(t *testing.T) {
		// the label column is ignored.
		pred := try.To(predict.RunPredict(ctx, logger.Null(), client, trained.ModelURI.String(), table.Frame())).OrFatal(t)
		if !xcmp.SliceApproxEq(pred, expected, 1e-9) {
			t.Errorf("predictions:\n%v\n%v", pred, expected)
		}
	})

	t.Run("from a local copy", func(t *testing.T) {
		pred := try.To(predict.RunPredict(ctx, logger.Null(), nil, saveDir, table.Frame())).OrFatal(t)
		if !xcmp.SliceApproxEq(pred, expected, 1e-9) {
			t.Errorf("predictions:\n%v\n%v", pred, expected)
		}
	})
}
