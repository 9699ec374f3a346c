// Package mlflowserver is an in-memory tracking server and model registry for tests.
//
// It speaks the subset of the REST API which mlreg uses, and proxies artifacts in memory.
package mlflowserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/opst/mlreg/pkg/api/types/tracking"
	"github.com/opst/mlreg/pkg/echoutil"

	apierr "github.com/opst/mlreg/pkg/api/types/errors"
)

// Transition is a record of a stage change.
type Transition struct {
	Name    string
	Version registry.Version
	From    registry.Stage
	To      registry.Stage
}

type Server struct {
	mu sync.Mutex

	// PendingPolls is how many times a new version is reported as PENDING_REGISTRATION
	// before it gets READY.
	PendingPolls int

	// StrictDeletion rejects deleting versions in Staging or Production,
	// and registered models which have such versions.
	StrictDeletion bool

	// Token, if not empty, is required as a bearer token.
	Token string

	now func() time.Time
	seq int

	experiments map[string]*tracking.Experiment
	runs        map[string]*tracking.Run
	models      map[string]*registry.RegisteredModel
	versions    map[string][]*registry.ModelVersion
	polls       map[string]int
	artifacts   map[string][]byte
	history     []Transition
}

func New() *Server {
	s := &Server{
		PendingPolls: 1,
		now:          time.Now,
		experiments:  map[string]*tracking.Experiment{},
		runs:         map[string]*tracking.Run{},
		models:       map[string]*registry.RegisteredModel{},
		versions:     map[string][]*registry.ModelVersion{},
		polls:        map[string]int{},
		artifacts:    map[string][]byte{},
	}
	s.experiments["0"] = &tracking.Experiment{
		ExperimentId: "0", Name: "Default", ArtifactLocation: "mlflow-artifacts:/0", LifecycleStage: "active",
	}
	return s
}

// Start runs the server until the test ends.
func Start(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func (s *Server) nextId() string {
	s.seq += 1
	return fmt.Sprintf("%032x", s.seq)
}

func (s *Server) millis() int64 {
	return s.now().UnixMilli()
}

// Handler builds the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	echoutil.SetLevel(e, "off")
	e.Use(echoutil.LogHandlerFunc)
	e.Use(s.authenticate)

	api := func(p string) string { return "/api/2.0/mlflow/" + p }

	e.GET(api("experiments/get-by-name"), s.getExperimentByName)
	e.POST(api("experiments/create"), s.createExperiment)

	e.POST(api("runs/create"), s.createRun)
	e.GET(api("runs/get"), s.getRun)
	e.POST(api("runs/update"), s.updateRun)
	e.POST(api("runs/log-parameter"), s.logParam)
	e.POST(api("runs/log-metric"), s.logMetric)
	e.POST(api("runs/log-batch"), s.logBatch)
	e.POST(api("runs/set-tag"), s.setTag)
	e.POST(api("runs/log-model"), s.logModel)

	e.POST(api("registered-models/create"), s.createRegisteredModel)
	e.GET(api("registered-models/get"), s.getRegisteredModel)
	e.PATCH(api("registered-models/update"), s.updateRegisteredModel)
	e.DELETE(api("registered-models/delete"), s.deleteRegisteredModel)
	e.GET(api("registered-models/search"), s.searchRegisteredModels)
	e.POST(api("registered-models/get-latest-versions"), s.getLatestVersions)

	e.POST(api("model-versions/create"), s.createModelVersion)
	e.GET(api("model-versions/get"), s.getModelVersion)
	e.PATCH(api("model-versions/update"), s.updateModelVersion)
	e.DELETE(api("model-versions/delete"), s.deleteModelVersion)
	e.POST(api("model-versions/transition-stage"), s.transitionStage)
	e.GET(api("model-versions/search"), s.searchModelVersions)
	e.GET(api("model-versions/get-download-uri"), s.getDownloadUri)

	e.GET(artifactsRoot, s.listArtifacts)
	e.GET(artifactsRoot+"/*", s.getArtifact)
	e.PUT(artifactsRoot+"/*", s.putArtifact)

	return e
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.Token == "" {
			return next(c)
		}
		if c.Request().Header.Get("Authorization") != "Bearer "+s.Token {
			return echo.NewHTTPError(http.StatusUnauthorized, apierr.ErrorMessage{
				ErrorCode: "UNAUTHENTICATED", Message: "invalid token",
			})
		}
		return next(c)
	}
}

// bind decodes the JSON request body.
func bind[T any](c echo.Context) (T, error) {
	var v T
	if err := json.NewDecoder(c.Request().Body).Decode(&v); err != nil {
		return v, apierr.BadRequest("malformed request: %s", err)
	}
	return v, nil
}

func required(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return apierr.BadRequest("missing value for required parameter '%s'", field)
	}
	return nil
}
