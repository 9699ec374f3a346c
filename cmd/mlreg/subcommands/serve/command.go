package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/mlreg/cmd/mlreg/models"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/cmd/mlreg/subcommands/common"
	"github.com/opst/mlreg/pkg/echoutil"
	"github.com/opst/mlreg/pkg/utils/filewatch"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Host     string        `flag:"host" metavar:"HOST" help:"address to listen on."`
	Port     int           `flag:"port" alias:"p" metavar:"PORT" help:"port to listen on."`
	LogLevel string        `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"log level of the server."`
	CacheTTL time.Duration `flag:"cache-ttl" metavar:"DURATION" help:"how long a loaded model is reused before the URI is resolved again."`
	NoWatch  bool          `flag:"no-watch" help:"keep running even if the profile store or mlregenv is modified."`
}

const ARG_URI = "MODEL_URI"

// ShutdownTimeout is how long the server waits for in-flight requests on stop.
const ShutdownTimeout = 15 * time.Second

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve a model over HTTP.",
		Flag{
			Host:     "127.0.0.1",
			Port:     5001,
			LogLevel: "info",
			CacheTTL: 30 * time.Second,
		},
		flarc.Args{
			{
				Name: ARG_URI, Required: true,
				Help: "model to be served: runs:/<run_id>/<path> or models:/<name>/<version|stage|latest>.",
			},
		},
		common.NewTaskWithCommonFlag(Task(Serve)),
		flarc.WithDescription(`
Serve a model over HTTP, like MLflow's scoring server.

Endpoints
---------

	GET  /ping         health check.
	GET  /model        the model version currently served.
	POST /invocations  predict. The body is a JSON in pandas "split" orient
	                   ({"dataframe_split": {"columns": [...], "data": [[...]]}})
	                   or a CSV (Content-Type: text/csv).
	                   The response is {"predictions": [...]}.

Models are resolved again after --cache-ttl, so serving models:/NAME/Production
follows stage transitions.

The server stops when the profile store or mlregenv is modified, unless --no-watch.

Example
-------

	{{ .Command }} models:/airbnb_rf_model/Production --port 5001
`),
	)
}

// NewServer creates the echo server serving the model at uri.
func NewServer(predictors *Predictors, uri string, loglevel string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	e.GET("/ping", PingHandler)
	e.GET("/health", PingHandler)
	e.GET("/model", ModelHandler(predictors, uri))
	e.POST("/invocations", InvocationsHandler(predictors, uri))
	return e
}

// Serve runs e on addr until ctx is done.
func Serve(ctx context.Context, logger *log.Logger, e *echo.Echo, addr string) error {
	served := make(chan error, 1)
	go func() {
		defer close(served)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			served <- err
		}
	}()

	select {
	case err, ok := <-served:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("shutting down: %v", context.Cause(ctx))
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return err
	}
	return <-served
}

func Task(
	serve func(context.Context, *log.Logger, *echo.Echo, string) error,
) common.TaskWithCommonFlag[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		if flags.Port < 0 || 65535 < flags.Port {
			return fmt.Errorf("%w: --port should be in 0..65535", flarc.ErrUsage)
		}
		if flags.CacheTTL <= 0 {
			return fmt.Errorf("%w: --cache-ttl should be positive", flarc.ErrUsage)
		}

		_, client, err := common.Connect(cf)
		if err != nil {
			return err
		}

		uri := cl.Args()[ARG_URI][0]
		predictors := NewPredictors(Loader(client, logger), flags.CacheTTL)
		if _, err := predictors.Get(ctx, uri); err != nil {
			return err
		}

		if !flags.NoWatch {
			wctx, cancel, err := filewatch.UntilModifyContext(ctx, cf.ProfileStore, cf.Env)
			if err != nil {
				return err
			}
			defer cancel()
			ctx = wctx
		}

		addr := net.JoinHostPort(flags.Host, strconv.Itoa(flags.Port))
		logger.Printf("serving %s on %s", uri, addr)
		if err := serve(ctx, logger, NewServer(predictors, uri, flags.LogLevel), addr); err != nil {
			return err
		}
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil && !errors.Is(cause, context.Canceled) {
			return fmt.Errorf("server stopped: %w", cause)
		}
		return nil
	}
}

// Loader loads models with client, logging which version is loaded.
func Loader(client rest.MLflowClient, logger *log.Logger) LoadFunc {
	return func(ctx context.Context, uri string) (*models.Loaded, error) {
		l, err := models.Load(ctx, client, uri)
		if err != nil {
			return nil, err
		}
		if l.Version != nil {
			logger.Printf("loaded %s: %s version %s (%s)", uri, l.Version.Name, l.Version.Version, l.Version.CurrentStage)
		} else {
			logger.Printf("loaded %s", uri)
		}
		return l, nil
	}
}
