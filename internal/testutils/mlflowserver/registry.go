package mlflowserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/registry"
)

// model returns the registered model. s.mu should be locked.
func (s *Server) model(name string) (*registry.RegisteredModel, error) {
	rm, ok := s.models[name]
	if !ok {
		return nil, apierr.NotFound("Registered Model with name=%s not found", name)
	}
	return rm, nil
}

// version returns the model version. s.mu should be locked.
func (s *Server) version(name string, v registry.Version) (*registry.ModelVersion, error) {
	if _, err := s.model(name); err != nil {
		return nil, err
	}
	for _, mv := range s.versions[name] {
		if mv.Version == v {
			return mv, nil
		}
	}
	return nil, apierr.NotFound("Model Version (name=%s, version=%s) not found", name, v)
}

// snapshot returns a copy of the registered model with its latest versions per stage.
func (s *Server) snapshot(rm *registry.RegisteredModel) registry.RegisteredModel {
	ret := *rm
	ret.LatestVersions = s.latest(rm.Name, nil)
	return ret
}

// latest returns the latest version in each stage. s.mu should be locked.
func (s *Server) latest(name string, stages []registry.Stage) []registry.ModelVersion {
	if len(stages) == 0 {
		stages = registry.Stages
	}
	ret := []registry.ModelVersion{}
	for _, st := range stages {
		var found *registry.ModelVersion
		for _, mv := range s.versions[name] {
			if mv.CurrentStage == st && (found == nil || found.Version < mv.Version) {
				found = mv
			}
		}
		if found != nil {
			ret = append(ret, *found)
		}
	}
	return ret
}

func (s *Server) createRegisteredModel(c echo.Context) error {
	req, err := bind[registry.CreateRegisteredModelRequest](c)
	if err != nil {
		return err
	}
	if err := required("name", req.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[req.Name]; ok {
		return apierr.AlreadyExists("Registered Model (name=%s) already exists.", req.Name)
	}
	now := s.millis()
	rm := &registry.RegisteredModel{
		Name: req.Name, Description: req.Description, Tags: req.Tags,
		CreationTimestamp: now, LastUpdatedTimestamp: now,
	}
	s.models[req.Name] = rm
	return c.JSON(http.StatusOK, registry.RegisteredModelResponse{RegisteredModel: s.snapshot(rm)})
}

func (s *Server) getRegisteredModel(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, err := s.model(c.QueryParam("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, registry.RegisteredModelResponse{RegisteredModel: s.snapshot(rm)})
}

func (s *Server) updateRegisteredModel(c echo.Context) error {
	req, err := bind[registry.UpdateRegisteredModelRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, err := s.model(req.Name)
	if err != nil {
		return err
	}
	rm.Description = req.Description
	rm.LastUpdatedTimestamp = s.millis()
	return c.JSON(http.StatusOK, registry.RegisteredModelResponse{RegisteredModel: s.snapshot(rm)})
}

func isLive(st registry.Stage) bool {
	return st == registry.StageStaging || st == registry.StageProduction
}

func (s *Server) deleteRegisteredModel(c echo.Context) error {
	req, err := bind[registry.DeleteRegisteredModelRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.model(req.Name); err != nil {
		return err
	}
	if s.StrictDeletion {
		for _, mv := range s.versions[req.Name] {
			if isLive(mv.CurrentStage) {
				return apierr.Conflict(
					"Registered model %s has version %s in stage %s. Archive it first.",
					req.Name, mv.Version, mv.CurrentStage,
				)
			}
		}
	}
	delete(s.models, req.Name)
	delete(s.versions, req.Name)
	return c.JSON(http.StatusOK, struct{}{})
}

// page cuts items by max_results and page_token (an offset) query parameters.
func page[T any](c echo.Context, items []T) ([]T, string, error) {
	limit := 100
	if m := c.QueryParam("max_results"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n <= 0 {
			return nil, "", apierr.BadRequest("invalid max_results: %s", m)
		}
		limit = n
	}
	offset := 0
	if t := c.QueryParam("page_token"); t != "" {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return nil, "", apierr.BadRequest("invalid page_token: %s", t)
		}
		offset = n
	}
	if len(items) <= offset {
		return []T{}, "", nil
	}
	end := min(offset+limit, len(items))
	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return items[offset:end], next, nil
}

func (s *Server) searchRegisteredModels(c echo.Context) error {
	match, err := parseFilter(c.QueryParam("filter"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := []registry.RegisteredModel{}
	for _, rm := range s.models {
		if match(rm.Name) {
			found = append(found, s.snapshot(rm))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	items, next, err := page(c, found)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, registry.SearchRegisteredModelsResponse{RegisteredModels: items, NextPageToken: next})
}

func (s *Server) getLatestVersions(c echo.Context) error {
	req, err := bind[registry.GetLatestVersionsRequest](c)
	if err != nil {
		return err
	}
	for _, st := range req.Stages {
		if _, err := registry.ParseStage(string(st)); err != nil {
			return apierr.BadRequest("%s", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.model(req.Name); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, registry.ModelVersionsResponse{ModelVersions: s.latest(req.Name, req.Stages)})
}

func (s *Server) createModelVersion(c echo.Context) error {
	req, err := bind[registry.CreateModelVersionRequest](c)
	if err != nil {
		return err
	}
	if err := required("source", req.Source); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.model(req.Name); err != nil {
		return err
	}
	var next registry.Version = 1
	for _, mv := range s.versions[req.Name] {
		if next <= mv.Version {
			next = mv.Version + 1
		}
	}
	now := s.millis()
	mv := &registry.ModelVersion{
		Name: req.Name, Version: next,
		CreationTimestamp: now, LastUpdatedTimestamp: now,
		CurrentStage: registry.StageNone,
		Description:  req.Description,
		Source:       req.Source, RunId: req.RunId,
		Status: registry.PendingRegistration,
		Tags:   req.Tags,
	}
	if !s.sourceExists(req.Source) {
		mv.Status = registry.FailedRegistration
		mv.StatusMessage = fmt.Sprintf("no model found at %s", req.Source)
	}
	s.versions[req.Name] = append(s.versions[req.Name], mv)
	s.polls[key(mv.Name, mv.Version)] = 0
	return c.JSON(http.StatusOK, registry.ModelVersionResponse{ModelVersion: *mv})
}

// sourceExists reports whether the source has any proxied artifact.
// Sources out of the proxy are trusted.
func (s *Server) sourceExists(source string) bool {
	dir, ok := strings.CutPrefix(source, "mlflow-artifacts:")
	if !ok {
		return true
	}
	dir = strings.Trim(dir, "/") + "/"
	for k := range s.artifacts {
		if strings.HasPrefix(k, dir) {
			return true
		}
	}
	return false
}

func key(name string, v registry.Version) string {
	return name + "/" + v.String()
}

func queryVersion(c echo.Context) (string, registry.Version, error) {
	name := c.QueryParam("name")
	v, err := registry.ParseVersion(c.QueryParam("version"))
	if err != nil {
		return "", 0, apierr.BadRequest("%s", err)
	}
	return name, v, nil
}

func (s *Server) getModelVersion(c echo.Context) error {
	name, v, err := queryVersion(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mv, err := s.version(name, v)
	if err != nil {
		return err
	}
	if mv.Status == registry.PendingRegistration {
		k := key(name, v)
		if s.PendingPolls <= s.polls[k] {
			mv.Status = registry.Ready
		}
		s.polls[k] += 1
	}
	return c.JSON(http.StatusOK, registry.ModelVersionResponse{ModelVersion: *mv})
}

func (s *Server) updateModelVersion(c echo.Context) error {
	req, err := bind[registry.UpdateModelVersionRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mv, err := s.version(req.Name, req.Version)
	if err != nil {
		return err
	}
	mv.Description = req.Description
	mv.LastUpdatedTimestamp = s.millis()
	return c.JSON(http.StatusOK, registry.ModelVersionResponse{ModelVersion: *mv})
}

func (s *Server) deleteModelVersion(c echo.Context) error {
	req, err := bind[registry.DeleteModelVersionRequest](c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mv, err := s.version(req.Name, req.Version)
	if err != nil {
		return err
	}
	if s.StrictDeletion && isLive(mv.CurrentStage) {
		return apierr.Conflict(
			"Model version %s/%s is in stage %s. Archive it first.", mv.Name, mv.Version, mv.CurrentStage,
		)
	}
	rest := []*registry.ModelVersion{}
	for _, other := range s.versions[req.Name] {
		if other != mv {
			rest = append(rest, other)
		}
	}
	s.versions[req.Name] = rest
	return c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) transitionStage(c echo.Context) error {
	req, err := bind[registry.TransitionModelVersionStageRequest](c)
	if err != nil {
		return err
	}
	stage, err := registry.ParseStage(string(req.Stage))
	if err != nil {
		return apierr.BadRequest("%s", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mv, err := s.version(req.Name, req.Version)
	if err != nil {
		return err
	}
	if mv.Status != registry.Ready {
		return apierr.Conflict("Model version %s/%s is not ready: %s", mv.Name, mv.Version, mv.Status)
	}

	now := s.millis()
	if req.ArchiveExistingVersions && isLive(stage) {
		for _, other := range s.versions[req.Name] {
			if other != mv && other.CurrentStage == stage {
				s.history = append(s.history, Transition{
					Name: other.Name, Version: other.Version, From: other.CurrentStage, To: registry.StageArchived,
				})
				other.CurrentStage = registry.StageArchived
				other.LastUpdatedTimestamp = now
			}
		}
	}
	s.history = append(s.history, Transition{Name: mv.Name, Version: mv.Version, From: mv.CurrentStage, To: stage})
	mv.CurrentStage = stage
	mv.LastUpdatedTimestamp = now
	return c.JSON(http.StatusOK, registry.ModelVersionResponse{ModelVersion: *mv})
}

func (s *Server) searchModelVersions(c echo.Context) error {
	match, err := parseFilter(c.QueryParam("filter"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := []registry.ModelVersion{}
	for name, mvs := range s.versions {
		if !match(name) {
			continue
		}
		for _, mv := range mvs {
			found = append(found, *mv)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].Version > found[j].Version
	})
	items, next, err := page(c, found)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, registry.SearchModelVersionsResponse{ModelVersions: items, NextPageToken: next})
}

func (s *Server) getDownloadUri(c echo.Context) error {
	name, v, err := queryVersion(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mv, err := s.version(name, v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, registry.GetDownloadUriResponse{ArtifactUri: mv.Source})
}

// History returns stage transitions in the order they happened.
func (s *Server) History() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transition{}, s.history...)
}

// RegisteredModel returns a copy of the registered model.
func (s *Server) RegisteredModel(name string) (registry.RegisteredModel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.models[name]
	if !ok {
		return registry.RegisteredModel{}, false
	}
	return s.snapshot(rm), true
}

// ModelVersions returns copies of versions of the registered model, in version order.
func (s *Server) ModelVersions(name string) []registry.ModelVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := []registry.ModelVersion{}
	for _, mv := range s.versions[name] {
		ret = append(ret, *mv)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Version < ret[j].Version })
	return ret
}
