package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/opst/mlreg/pkg/api/types/registry"
	apitags "github.com/opst/mlreg/pkg/api/types/tags"
)

// searchPageSize is max_results of search requests.
const searchPageSize = 100

func (c *client) CreateRegisteredModel(ctx context.Context, name string, description string, tags []apitags.Tag) (registry.RegisteredModel, error) {
	resp, err := send[registry.RegisteredModelResponse](
		ctx, c, http.MethodPost, c.mlflow("registered-models", "create"),
		registry.CreateRegisteredModelRequest{Name: name, Description: description, Tags: tags},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot create registered model %q", name),
			Status5xx: "server error on creating registered model",
		},
	)
	return resp.RegisteredModel, err
}

func (c *client) GetRegisteredModel(ctx context.Context, name string) (registry.RegisteredModel, error) {
	resp, err := get[registry.RegisteredModelResponse](
		ctx, c, c.mlflow("registered-models", "get"),
		url.Values{"name": {name}},
		MessageFor{
			Status4xx: fmt.Sprintf("registered model %q is not found", name),
			Status5xx: "server error on getting registered model",
		},
	)
	return resp.RegisteredModel, err
}

func (c *client) UpdateRegisteredModel(ctx context.Context, name string, description string) (registry.RegisteredModel, error) {
	resp, err := send[registry.RegisteredModelResponse](
		ctx, c, http.MethodPatch, c.mlflow("registered-models", "update"),
		registry.UpdateRegisteredModelRequest{Name: name, Description: description},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot update registered model %q", name),
			Status5xx: "server error on updating registered model",
		},
	)
	return resp.RegisteredModel, err
}

func (c *client) DeleteRegisteredModel(ctx context.Context, name string) error {
	_, err := send[empty](
		ctx, c, http.MethodDelete, c.mlflow("registered-models", "delete"),
		registry.DeleteRegisteredModelRequest{Name: name},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot delete registered model %q", name),
			Status5xx: "server error on deleting registered model",
		},
	)
	return err
}

// paginate calls page until the returned next page token is empty.
func paginate[T any](page func(token string) ([]T, string, error)) ([]T, error) {
	ret := []T{}
	token := ""
	for {
		items, next, err := page(token)
		if err != nil {
			return nil, err
		}
		ret = append(ret, items...)
		if next == "" || next == token {
			return ret, nil
		}
		token = next
	}
}

func searchQuery(filter string, token string) url.Values {
	q := url.Values{"max_results": {strconv.Itoa(searchPageSize)}}
	if filter != "" {
		q.Set("filter", filter)
	}
	if token != "" {
		q.Set("page_token", token)
	}
	return q
}

func (c *client) SearchRegisteredModels(ctx context.Context, filter string) ([]registry.RegisteredModel, error) {
	return paginate(func(token string) ([]registry.RegisteredModel, string, error) {
		resp, err := get[registry.SearchRegisteredModelsResponse](
			ctx, c, c.mlflow("registered-models", "search"),
			searchQuery(filter, token),
			MessageFor{
				Status4xx: fmt.Sprintf("cannot search registered models (filter: %s)", filter),
				Status5xx: "server error on searching registered models",
			},
		)
		return resp.RegisteredModels, resp.NextPageToken, err
	})
}

func (c *client) GetLatestVersions(ctx context.Context, name string, stages []registry.Stage) ([]registry.ModelVersion, error) {
	resp, err := send[registry.ModelVersionsResponse](
		ctx, c, http.MethodPost, c.mlflow("registered-models", "get-latest-versions"),
		registry.GetLatestVersionsRequest{Name: name, Stages: stages},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot get latest versions of %q", name),
			Status5xx: "server error on getting latest versions",
		},
	)
	return resp.ModelVersions, err
}

func (c *client) CreateModelVersion(ctx context.Context, name string, source string, runId string, description string, tags []apitags.Tag) (registry.ModelVersion, error) {
	resp, err := send[registry.ModelVersionResponse](
		ctx, c, http.MethodPost, c.mlflow("model-versions", "create"),
		registry.CreateModelVersionRequest{
			Name: name, Source: source, RunId: runId, Description: description, Tags: tags,
		},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot create a version of %q", name),
			Status5xx: "server error on creating model version",
		},
	)
	return resp.ModelVersion, err
}

func (c *client) GetModelVersion(ctx context.Context, name string, version registry.Version) (registry.ModelVersion, error) {
	resp, err := get[registry.ModelVersionResponse](
		ctx, c, c.mlflow("model-versions", "get"),
		url.Values{"name": {name}, "version": {version.String()}},
		MessageFor{
			Status4xx: fmt.Sprintf("model version %s/%s is not found", name, version),
			Status5xx: "server error on getting model version",
		},
	)
	return resp.ModelVersion, err
}

func (c *client) UpdateModelVersion(ctx context.Context, name string, version registry.Version, description string) (registry.ModelVersion, error) {
	resp, err := send[registry.ModelVersionResponse](
		ctx, c, http.MethodPatch, c.mlflow("model-versions", "update"),
		registry.UpdateModelVersionRequest{Name: name, Version: version, Description: description},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot update model version %s/%s", name, version),
			Status5xx: "server error on updating model version",
		},
	)
	return resp.ModelVersion, err
}

func (c *client) DeleteModelVersion(ctx context.Context, name string, version registry.Version) error {
	_, err := send[empty](
		ctx, c, http.MethodDelete, c.mlflow("model-versions", "delete"),
		registry.DeleteModelVersionRequest{Name: name, Version: version},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot delete model version %s/%s", name, version),
			Status5xx: "server error on deleting model version",
		},
	)
	return err
}

func (c *client) TransitionModelVersionStage(ctx context.Context, name string, version registry.Version, stage registry.Stage, archiveExisting bool) (registry.ModelVersion, error) {
	resp, err := send[registry.ModelVersionResponse](
		ctx, c, http.MethodPost, c.mlflow("model-versions", "transition-stage"),
		registry.TransitionModelVersionStageRequest{
			Name: name, Version: version, Stage: stage, ArchiveExistingVersions: archiveExisting,
		},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot transition model version %s/%s to %s", name, version, stage),
			Status5xx: "server error on transitioning stage",
		},
	)
	return resp.ModelVersion, err
}

func (c *client) SearchModelVersions(ctx context.Context, filter string) ([]registry.ModelVersion, error) {
	return paginate(func(token string) ([]registry.ModelVersion, string, error) {
		resp, err := get[registry.SearchModelVersionsResponse](
			ctx, c, c.mlflow("model-versions", "search"),
			searchQuery(filter, token),
			MessageFor{
				Status4xx: fmt.Sprintf("cannot search model versions (filter: %s)", filter),
				Status5xx: "server error on searching model versions",
			},
		)
		return resp.ModelVersions, resp.NextPageToken, err
	})
}

func (c *client) GetModelVersionDownloadUri(ctx context.Context, name string, version registry.Version) (string, error) {
	resp, err := get[registry.GetDownloadUriResponse](
		ctx, c, c.mlflow("model-versions", "get-download-uri"),
		url.Values{"name": {name}, "version": {version.String()}},
		MessageFor{
			Status4xx: fmt.Sprintf("model version %s/%s is not found", name, version),
			Status5xx: "server error on getting download uri",
		},
	)
	return resp.ArtifactUri, err
}
