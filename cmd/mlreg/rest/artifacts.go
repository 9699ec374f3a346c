package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opst/mlreg/pkg/api/types/tracking"
)

var ErrUnsupportedArtifactRoot = errors.New("unsupported artifact root")

// artifactRoot is a resolved location of artifacts.
type artifactRoot struct {
	// proxied by the tracking server. base is the URL of the artifact proxy,
	// and dir is a path under it.
	base string
	dir  string

	// on the local filesystem.
	local string
}

func (c *client) resolveArtifactRoot(artifactUri string) (artifactRoot, error) {
	u, err := url.Parse(artifactUri)
	if err != nil {
		return artifactRoot{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedArtifactRoot, artifactUri, err)
	}

	switch u.Scheme {
	case "mlflow-artifacts":
		base := c.apipath("api", "2.0", "mlflow-artifacts", "artifacts")
		if u.Host != "" {
			// mlflow-artifacts://host:port/path is proxied by another server.
			api, err := url.Parse(c.api)
			if err != nil {
				return artifactRoot{}, err
			}
			base = (&url.URL{Scheme: api.Scheme, Host: u.Host, Path: "/api/2.0/mlflow-artifacts/artifacts"}).String()
		}
		return artifactRoot{base: base, dir: strings.Trim(u.Path, "/")}, nil
	case "file":
		return artifactRoot{local: filepath.FromSlash(u.Path)}, nil
	case "":
		if filepath.IsAbs(artifactUri) {
			return artifactRoot{local: artifactUri}, nil
		}
	}
	return artifactRoot{}, fmt.Errorf("%w: %s", ErrUnsupportedArtifactRoot, artifactUri)
}

func cleanRel(relpath string) (string, error) {
	slashed := filepath.ToSlash(relpath)
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("artifact path should not go up: %s", relpath)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+slashed), "/"), nil
}

func (r artifactRoot) url(relpath string) string {
	elems := []string{r.base}
	for _, p := range []string{r.dir, relpath} {
		if p == "" {
			continue
		}
		segs := strings.Split(p, "/")
		for i := range segs {
			segs[i] = url.PathEscape(segs[i])
		}
		elems = append(elems, strings.Join(segs, "/"))
	}
	return strings.Join(elems, "/")
}

func (c *client) UploadArtifact(ctx context.Context, artifactUri string, relpath string, content io.Reader) error {
	root, err := c.resolveArtifactRoot(artifactUri)
	if err != nil {
		return err
	}
	rel, err := cleanRel(relpath)
	if err != nil {
		return err
	}

	if root.local != "" {
		dest := filepath.Join(root.local, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, content); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	req, err := c.newRequest(ctx, http.MethodPut, root.url(rel), content)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	return errorResponse(resp, MessageFor{
		Status4xx: fmt.Sprintf("cannot upload artifact %s", rel),
		Status5xx: "server error on uploading artifact",
	})
}

func (c *client) DownloadArtifact(ctx context.Context, artifactUri string, relpath string, handler func(io.Reader) error) error {
	root, err := c.resolveArtifactRoot(artifactUri)
	if err != nil {
		return err
	}
	rel, err := cleanRel(relpath)
	if err != nil {
		return err
	}

	if root.local != "" {
		f, err := os.Open(filepath.Join(root.local, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		defer f.Close()
		return handler(f)
	}

	req, err := c.newRequest(ctx, http.MethodGet, root.url(rel), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := errorResponse(resp, MessageFor{
		Status4xx: fmt.Sprintf("cannot download artifact %s", rel),
		Status5xx: "server error on downloading artifact",
	}); err != nil {
		return err
	}
	return handler(resp.Body)
}

func (c *client) ListArtifacts(ctx context.Context, artifactUri string, relpath string) ([]tracking.FileInfo, error) {
	root, err := c.resolveArtifactRoot(artifactUri)
	if err != nil {
		return nil, err
	}
	rel, err := cleanRel(relpath)
	if err != nil {
		return nil, err
	}

	if root.local != "" {
		entries, err := os.ReadDir(filepath.Join(root.local, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		files := make([]tracking.FileInfo, 0, len(entries))
		for _, e := range entries {
			fi := tracking.FileInfo{Path: path.Join(rel, e.Name()), IsDir: e.IsDir()}
			if info, err := e.Info(); err == nil && !e.IsDir() {
				fi.FileSize = info.Size()
			}
			files = append(files, fi)
		}
		return files, nil
	}

	resp, err := get[tracking.ListArtifactsResponse](
		ctx, c, root.base,
		url.Values{"path": {path.Join(root.dir, rel)}},
		MessageFor{
			Status4xx: fmt.Sprintf("cannot list artifacts in %s", rel),
			Status5xx: "server error on listing artifacts",
		},
	)
	if err != nil {
		return nil, err
	}
	// the proxy returns names relative to the listed directory.
	files := make([]tracking.FileInfo, len(resp.Files))
	for i, f := range resp.Files {
		f.Path = path.Join(rel, path.Base(f.Path))
		files[i] = f
	}
	return files, nil
}
