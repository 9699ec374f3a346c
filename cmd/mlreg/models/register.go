// Package models registers models into the registry and loads them back.
package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opst/mlreg/cmd/mlreg/rest"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
	"github.com/opst/mlreg/pkg/modeluri"
	"github.com/opst/mlreg/pkg/utils/retry"
	"github.com/opst/mlreg/pkg/utils/slices"
)

var (
	ErrRegistrationFailed = errors.New("model version registration failed")
	ErrNoVersion          = errors.New("registered model has no versions")
)

// ResolveSource converts a model URI into the artifact location of the model,
// and the run which has logged the model (if known).
//
// runs:/ and models:/ URIs are resolved via the tracking server.
// Other URIs (mlflow-artifacts:/..., file://...) are returned as they are.
func ResolveSource(ctx context.Context, client rest.MLflowClient, uri string) (source string, runId string, err error) {
	if !strings.HasPrefix(uri, string(modeluri.Runs)+":/") && !strings.HasPrefix(uri, string(modeluri.Models)+":/") {
		return uri, "", nil
	}
	u, err := modeluri.Parse(uri)
	if err != nil {
		return "", "", err
	}

	switch u.Scheme {
	case modeluri.Runs:
		run, err := client.GetRun(ctx, u.RunId)
		if err != nil {
			return "", "", err
		}
		root := strings.TrimSuffix(run.Info.ArtifactUri, "/")
		return root + "/" + u.ArtifactPath, u.RunId, nil
	default:
		mv, err := Resolve(ctx, client, u)
		if err != nil {
			return "", "", err
		}
		src, err := client.GetModelVersionDownloadUri(ctx, mv.Name, mv.Version)
		if err != nil {
			return "", "", err
		}
		return src, mv.RunId, nil
	}
}

// Register registers the model at uri as a new version of the registered model name.
//
// The registered model is created if missing.
// The returned version may be still PENDING_REGISTRATION; use WaitUntilReady.
func Register(ctx context.Context, client rest.MLflowClient, uri string, name string, tags []apitags.Tag) (registry.ModelVersion, error) {
	source, runId, err := ResolveSource(ctx, client, uri)
	if err != nil {
		return registry.ModelVersion{}, err
	}

	if _, err := client.CreateRegisteredModel(ctx, name, "", nil); err != nil && !errors.Is(err, apierr.ErrResourceAlreadyExists) {
		return registry.ModelVersion{}, err
	}

	return client.CreateModelVersion(ctx, name, source, runId, "", tags)
}

// WaitUntilReady polls the model version until its status gets READY.
//
// It returns ErrRegistrationFailed when the status is FAILED_REGISTRATION.
// Deadline of ctx bounds the wait.
func WaitUntilReady(ctx context.Context, client rest.MLflowClient, name string, version registry.Version, backoff retry.Backoff) (registry.ModelVersion, error) {
	mv, err := retry.Blocking(ctx, backoff, func() (registry.ModelVersion, error) {
		mv, err := client.GetModelVersion(ctx, name, version)
		if err != nil {
			return mv, err
		}
		switch mv.Status {
		case registry.Ready:
			return mv, nil
		case registry.FailedRegistration:
			return mv, fmt.Errorf("%w: %s/%s: %s", ErrRegistrationFailed, name, version, mv.StatusMessage)
		default:
			return mv, fmt.Errorf("%w: %s/%s is %s", retry.ErrRetry, name, version, mv.Status)
		}
	})
	if err != nil {
		return mv, err
	}
	return mv, nil
}

// LatestVersion returns the version with the greatest number of the registered model, in any stage.
func LatestVersion(ctx context.Context, client rest.MLflowClient, name string) (registry.ModelVersion, error) {
	mvs, err := client.SearchModelVersions(ctx, NameFilter(name))
	if err != nil {
		return registry.ModelVersion{}, err
	}
	latest, ok := registry.Latest(mvs)
	if !ok {
		return registry.ModelVersion{}, fmt.Errorf("%w: %s", ErrNoVersion, name)
	}
	return latest, nil
}

// NameFilter is the search filter selecting versions of the registered model.
func NameFilter(name string) string {
	return fmt.Sprintf("name = '%s'", strings.ReplaceAll(name, "'", `\'`))
}

// Resolve finds the model version which a models:/ URI points.
func Resolve(ctx context.Context, client rest.MLflowClient, u modeluri.URI) (registry.ModelVersion, error) {
	if u.Scheme != modeluri.Models {
		return registry.ModelVersion{}, fmt.Errorf("%w: %s does not point a model version", modeluri.ErrInvalidURI, u)
	}
	switch {
	case u.Latest:
		return LatestVersion(ctx, client, u.Name)
	case u.Stage != "":
		mvs, err := client.GetLatestVersions(ctx, u.Name, []registry.Stage{u.Stage})
		if err != nil {
			return registry.ModelVersion{}, err
		}
		inStage := slices.Filter(mvs, func(mv registry.ModelVersion) bool { return mv.CurrentStage == u.Stage })
		mv, ok := registry.Latest(inStage)
		if !ok {
			return registry.ModelVersion{}, fmt.Errorf("%w: %s has no versions in %s", ErrNoVersion, u.Name, u.Stage)
		}
		return mv, nil
	default:
		return client.GetModelVersion(ctx, u.Name, u.Version)
	}
}
