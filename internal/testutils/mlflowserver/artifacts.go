package mlflowserver

import (
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/tracking"
)

const artifactsRoot = "/api/2.0/mlflow-artifacts/artifacts"

func artifactKey(c echo.Context) (string, error) {
	p := strings.Trim(c.Param("*"), "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", apierr.BadRequest("invalid path: %s", p)
		}
	}
	if p == "" {
		return "", apierr.BadRequest("empty artifact path")
	}
	return p, nil
}

func (s *Server) putArtifact(c echo.Context) error {
	k, err := artifactKey(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apierr.InternalServerError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[k] = body
	return c.JSON(http.StatusOK, struct{}{})
}

func (s *Server) getArtifact(c echo.Context) error {
	k, err := artifactKey(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	body, ok := s.artifacts[k]
	s.mu.Unlock()
	if !ok {
		return apierr.NotFound("artifact %s is not found", k)
	}
	return c.Blob(http.StatusOK, "application/octet-stream", body)
}

// listArtifacts lists entries directly under ?path=, with names relative to it.
func (s *Server) listArtifacts(c echo.Context) error {
	dir := strings.Trim(c.QueryParam("path"), "/")
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := map[string]tracking.FileInfo{}
	for k, v := range s.artifacts {
		rel, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		if name, _, isDir := strings.Cut(rel, "/"); isDir {
			entries[name] = tracking.FileInfo{Path: name, IsDir: true}
		} else {
			entries[name] = tracking.FileInfo{Path: name, FileSize: int64(len(v))}
		}
	}
	files := make([]tracking.FileInfo, 0, len(entries))
	for _, e := range entries {
		files = append(files, e)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return c.JSON(http.StatusOK, tracking.ListArtifactsResponse{Files: files})
}

// Artifact returns the content of a proxied artifact, like "0/<run_id>/artifacts/model/MLmodel".
func (s *Server) Artifact(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.artifacts[path.Clean(strings.Trim(p, "/"))]
	return b, ok
}
