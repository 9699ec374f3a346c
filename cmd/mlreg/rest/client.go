package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opst/mlreg/cmd/mlreg/config/profiles"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/api/types/tracking"
)

// MLflowClient calls the tracking server and the model registry.
type MLflowClient interface {
	// GetExperimentByName finds an experiment.
	//
	// When not found, the error wraps errors.ErrResourceDoesNotExist.
	GetExperimentByName(ctx context.Context, name string) (tracking.Experiment, error)

	// CreateExperiment creates a new experiment and returns its id.
	CreateExperiment(ctx context.Context, name string) (string, error)

	// EnsureExperiment returns the id of the experiment, creating it if missing.
	EnsureExperiment(ctx context.Context, name string) (string, error)

	// CreateRun starts a new run in the experiment.
	CreateRun(ctx context.Context, experimentId string, runName string, tags []apitags.Tag) (tracking.Run, error)

	GetRun(ctx context.Context, runId string) (tracking.Run, error)

	// EndRun marks the run terminated with the status.
	EndRun(ctx context.Context, runId string, status tracking.RunStatus) error

	LogParam(ctx context.Context, runId string, key string, value string) error
	LogMetric(ctx context.Context, runId string, key string, value float64, step int64) error
	LogBatch(ctx context.Context, runId string, metrics []tracking.Metric, params []tracking.Param, tags []apitags.Tag) error
	SetTag(ctx context.Context, runId string, key string, value string) error

	// LogModel records the MLmodel document (as JSON) of a model logged in the run.
	LogModel(ctx context.Context, runId string, mlmodelJson string) error

	// UploadArtifact writes content to artifactUri/relpath.
	//
	// artifactUri should be one of mlflow-artifacts:/... or file://... .
	// Otherwise, it returns ErrUnsupportedArtifactRoot.
	UploadArtifact(ctx context.Context, artifactUri string, relpath string, content io.Reader) error

	// DownloadArtifact reads artifactUri/relpath and passes the content to handler.
	//
	// The error returned by handler is returned as is.
	DownloadArtifact(ctx context.Context, artifactUri string, relpath string, handler func(io.Reader) error) error

	// ListArtifacts lists files directly under artifactUri/relpath.
	ListArtifacts(ctx context.Context, artifactUri string, relpath string) ([]tracking.FileInfo, error)

	// CreateRegisteredModel creates a new registered model.
	//
	// When it already exists, the error wraps errors.ErrResourceAlreadyExists.
	CreateRegisteredModel(ctx context.Context, name string, description string, tags []apitags.Tag) (registry.RegisteredModel, error)
	GetRegisteredModel(ctx context.Context, name string) (registry.RegisteredModel, error)
	UpdateRegisteredModel(ctx context.Context, name string, description string) (registry.RegisteredModel, error)
	DeleteRegisteredModel(ctx context.Context, name string) error

	// SearchRegisteredModels finds registered models with the filter, like "name LIKE 'airbnb%'".
	//
	// All pages are read.
	SearchRegisteredModels(ctx context.Context, filter string) ([]registry.RegisteredModel, error)

	// GetLatestVersions returns the latest version for each stage.
	//
	// If stages is empty, all stages are looked up.
	GetLatestVersions(ctx context.Context, name string, stages []registry.Stage) ([]registry.ModelVersion, error)

	// CreateModelVersion registers a new version of the model from source (the artifact location of the model).
	CreateModelVersion(ctx context.Context, name string, source string, runId string, description string, tags []apitags.Tag) (registry.ModelVersion, error)
	GetModelVersion(ctx context.Context, name string, version registry.Version) (registry.ModelVersion, error)
	UpdateModelVersion(ctx context.Context, name string, version registry.Version, description string) (registry.ModelVersion, error)
	DeleteModelVersion(ctx context.Context, name string, version registry.Version) error

	// TransitionModelVersionStage requests a stage transition.
	//
	// If archiveExisting is true, the other versions in the stage are moved to Archived.
	// Whether the transition is allowed is decided by the registry.
	TransitionModelVersionStage(ctx context.Context, name string, version registry.Version, stage registry.Stage, archiveExisting bool) (registry.ModelVersion, error)

	// SearchModelVersions finds model versions with the filter, like "name = 'foo'".
	//
	// All pages are read.
	SearchModelVersions(ctx context.Context, filter string) ([]registry.ModelVersion, error)

	// GetModelVersionDownloadUri returns the artifact uri where the version is stored.
	GetModelVersionDownloadUri(ctx context.Context, name string, version registry.Version) (string, error)
}

type client struct {
	httpclient *http.Client
	api        string
	token      string
	now        func() time.Time
}

// NewClient creates a client for the profile.
//
// If the profile is invalid, it returns profiles.ErrProfileInvalid or profiles.ErrTokenExpired.
func NewClient(prof *profiles.Profile) (MLflowClient, error) {
	if err := prof.Verify(time.Now()); err != nil {
		return nil, err
	}
	httpclient := new(http.Client)
	if prof.Cert.CA != "" {
		hc, err := trustCa(httpclient, prof.Cert.CA)
		if err != nil {
			return nil, err
		}
		httpclient = hc
	}

	return &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(prof.ApiRoot, "/"),
		token:      prof.Token,
		now:        time.Now,
	}, nil
}

// apipath builds URL of the tracking server.
func (c *client) apipath(path ...string) string {
	elems := make([]string, 0, len(path)+1)
	elems = append(elems, c.api)
	for _, p := range path {
		elems = append(elems, strings.Trim(p, "/"))
	}
	return strings.Join(elems, "/")
}

func (c *client) mlflow(path ...string) string {
	return c.apipath(append([]string{"api", "2.0", "mlflow"}, path...)...)
}

func (c *client) newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// get sends GET with query, and decodes the JSON response into a new T.
func get[T any](ctx context.Context, c *client, endpoint string, query url.Values, mf MessageFor) (T, error) {
	u := endpoint
	if len(query) != 0 {
		u += "?" + query.Encode()
	}
	var ret T
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ret, err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return ret, err
	}
	defer resp.Body.Close()
	err = unmarshalJsonResponse(resp, &ret, mf)
	return ret, err
}

// send sends payload as JSON with the method, and decodes the JSON response into a new T.
func send[T any](ctx context.Context, c *client, method string, endpoint string, payload any, mf MessageFor) (T, error) {
	var ret T
	body, err := json.Marshal(payload)
	if err != nil {
		return ret, err
	}
	req, err := c.newRequest(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return ret, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return ret, err
	}
	defer resp.Body.Close()
	err = unmarshalJsonResponse(resp, &ret, mf)
	return ret, err
}

// empty is a response without meaningful content.
type empty struct{}

func trustCa(hc *http.Client, b64cacert string) (*http.Client, error) {
	tran, ok := http.DefaultTransport.(*http.Transport)
	if hc.Transport != nil {
		tran, ok = hc.Transport.(*http.Transport)
	}
	if !ok {
		return nil, errors.New("failed to add ca cert: unknown transport")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig
	if tcc == nil {
		tcc = &tls.Config{}
	} else {
		tcc = tcc.Clone()
	}
	if tcc.RootCAs == nil {
		if pool, err := x509.SystemCertPool(); err == nil {
			tcc.RootCAs = pool
		} else {
			tcc.RootCAs = x509.NewCertPool()
		}
	}

	bin, err := base64.StdEncoding.DecodeString(b64cacert)
	if err != nil {
		return nil, err
	}
	if !tcc.RootCAs.AppendCertsFromPEM(bin) {
		return nil, fmt.Errorf("failed to add ca cert: no certificates in PEM")
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
