package serve

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/opst/mlreg/cmd/mlreg/models"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/opst/mlreg/pkg/dataset"
)

// ModelInfo is the response of GET /model.
type ModelInfo struct {
	URI     string                 `json:"model_uri"`
	Source  string                 `json:"source"`
	Version *registry.ModelVersion `json:"model_version,omitempty"`
}

func PingHandler(c echo.Context) error {
	return c.String(http.StatusOK, "\n")
}

func ModelHandler(predictors *Predictors, uri string) echo.HandlerFunc {
	return func(c echo.Context) error {
		l, err := predictors.Get(c.Request().Context(), uri)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, ModelInfo{URI: l.URI.String(), Source: l.Source, Version: l.Version})
	}
}

// InvocationsHandler predicts for the table in the request body.
//
// The body is a JSON in pandas "split" orient (optionally wrapped by "dataframe_split"),
// or a CSV with Content-Type: text/csv.
func InvocationsHandler(predictors *Predictors, uri string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return apierr.BadRequest("cannot read request body: %s", err)
		}

		var x dataset.Frame
		mediatype, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
		switch mediatype {
		case "text/csv":
			t, err := dataset.LoadCSV(bytes.NewReader(body))
			if err != nil {
				return apierr.BadRequest("%s", err)
			}
			x = t.Frame()
		case "", echo.MIMEApplicationJSON:
			if x, err = dataset.DecodeRequest(body); err != nil {
				return apierr.BadRequest("%s", err)
			}
		default:
			return echo.NewHTTPError(
				http.StatusUnsupportedMediaType,
				apierr.ErrorMessage{
					ErrorCode: apierr.InvalidParameterValue,
					Message:   "content type should be application/json or text/csv: " + mediatype,
				},
			)
		}

		l, err := predictors.Get(req.Context(), uri)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		pred, err := l.Predict(x)
		if err != nil {
			if errors.Is(err, models.ErrSchemaUnmatch) ||
				errors.Is(err, dataset.ErrShapeUnmatch) ||
				errors.Is(err, dataset.ErrNoColumn) {
				return apierr.BadRequest("%s", err)
			}
			// the model is unusable. load it again on the next request.
			predictors.Forget(uri)
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, models.Predictions{Predictions: pred})
	}
}
