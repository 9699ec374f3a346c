package registry

import apitags "github.com/opst/mlreg/pkg/api/types/tags"

// request and response bodies of the model registry API.

type CreateRegisteredModelRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Tags        []apitags.Tag `json:"tags,omitempty"`
}

type RegisteredModelResponse struct {
	RegisteredModel RegisteredModel `json:"registered_model"`
}

type UpdateRegisteredModelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type DeleteRegisteredModelRequest struct {
	Name string `json:"name"`
}

type SearchRegisteredModelsResponse struct {
	RegisteredModels []RegisteredModel `json:"registered_models,omitempty"`
	NextPageToken    string            `json:"next_page_token,omitempty"`
}

type GetLatestVersionsRequest struct {
	Name   string  `json:"name"`
	Stages []Stage `json:"stages,omitempty"`
}

type ModelVersionsResponse struct {
	ModelVersions []ModelVersion `json:"model_versions,omitempty"`
}

type CreateModelVersionRequest struct {
	Name        string        `json:"name"`
	Source      string        `json:"source"`
	RunId       string        `json:"run_id,omitempty"`
	Description string        `json:"description,omitempty"`
	Tags        []apitags.Tag `json:"tags,omitempty"`
}

type ModelVersionResponse struct {
	ModelVersion ModelVersion `json:"model_version"`
}

type UpdateModelVersionRequest struct {
	Name        string  `json:"name"`
	Version     Version `json:"version"`
	Description string  `json:"description"`
}

type DeleteModelVersionRequest struct {
	Name    string  `json:"name"`
	Version Version `json:"version"`
}

type TransitionModelVersionStageRequest struct {
	Name                    string  `json:"name"`
	Version                 Version `json:"version"`
	Stage                   Stage   `json:"stage"`
	ArchiveExistingVersions bool    `json:"archive_existing_versions"`
}

type SearchModelVersionsResponse struct {
	ModelVersions []ModelVersion `json:"model_versions,omitempty"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type GetDownloadUriResponse struct {
	ArtifactUri string `json:"artifact_uri"`
}
