package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	"github.com/opst/mlreg/pkg/api/types/tracking"
)

// artifactProxy is a tiny artifact proxy which keeps files in memory.
func artifactProxy(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	const prefix = "/api/2.0/mlflow-artifacts/artifacts"
	files := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.URL.Path, prefix) {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
		switch r.Method {
		case http.MethodPut:
			b, err := io.ReadAll(r.Body)
			if err != nil {
				t.Error(err)
			}
			files[key] = b
			w.Write([]byte("{}"))
		case http.MethodGet:
			if key == "" {
				dir := r.URL.Query().Get("path")
				resp := tracking.ListArtifactsResponse{}
				for k, v := range files {
					if filepath.Dir(k) == dir {
						resp.Files = append(resp.Files, tracking.FileInfo{Path: filepath.Base(k), FileSize: int64(len(v))})
					}
				}
				json.NewEncoder(w).Encode(resp)
				return
			}
			b, ok := files[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "not found"}`))
				return
			}
			w.Write(b)
		default:
			t.Errorf("unexpected method: %s", r.Method)
		}
	}))
	return srv, files
}

func readAll(dest *[]byte) func(io.Reader) error {
	return func(r io.Reader) error {
		b, err := io.ReadAll(r)
		*dest = b
		return err
	}
}

func TestArtifacts_Proxied(t *testing.T) {
	srv, files := artifactProxy(t)
	defer srv.Close()
	ctx := context.Background()
	testee := newClient(t, srv, "tok")
	root := "mlflow-artifacts:/0/r1/artifacts"

	if err := testee.UploadArtifact(ctx, root, "model/MLmodel", strings.NewReader("flavors: {}")); err != nil {
		t.Fatal(err)
	}
	if err := testee.UploadArtifact(ctx, root, "model/model.json", strings.NewReader("{}")); err != nil {
		t.Fatal(err)
	}

	wantFiles := map[string][]byte{
		"0/r1/artifacts/model/MLmodel":    []byte("flavors: {}"),
		"0/r1/artifacts/model/model.json": []byte("{}"),
	}
	if !cmp.Equal(files, wantFiles) {
		t.Errorf("stored:\n%s", cmp.Diff(wantFiles, files))
	}

	var got []byte
	if err := testee.DownloadArtifact(ctx, root+"/model", "MLmodel", readAll(&got)); err != nil {
		t.Fatal(err)
	}
	if string(got) != "flavors: {}" {
		t.Errorf("downloaded: %s", got)
	}

	listed, err := testee.ListArtifacts(ctx, root, "model")
	if err != nil {
		t.Fatal(err)
	}
	byPath := map[string]int64{}
	for _, f := range listed {
		byPath[f.Path] = f.FileSize
	}
	wantListed := map[string]int64{"model/MLmodel": 11, "model/model.json": 2}
	if !cmp.Equal(byPath, wantListed) {
		t.Errorf("listed:\n%s", cmp.Diff(wantListed, byPath))
	}

	t.Run("missing artifact", func(t *testing.T) {
		err := testee.DownloadArtifact(ctx, root, "model/missing", readAll(&got))
		if err == nil {
			t.Fatal("no error")
		}
	})

	t.Run("path going up", func(t *testing.T) {
		err := testee.UploadArtifact(ctx, root, "../../other/x", strings.NewReader(""))
		if err == nil {
			t.Fatal("no error")
		}
	})
}

func TestArtifacts_Local(t *testing.T) {
	h, got := recorder(t, http.StatusOK, struct{}{})
	srv := httptest.NewServer(h)
	defer srv.Close()
	ctx := context.Background()
	testee := newClient(t, srv, "")

	for name, root := range map[string]string{
		"file scheme":   "file://" + filepath.ToSlash(t.TempDir()),
		"absolute path": t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			if err := testee.UploadArtifact(ctx, root, "model/model.json", bytes.NewBufferString(`{"trees":[]}`)); err != nil {
				t.Fatal(err)
			}

			var content []byte
			if err := testee.DownloadArtifact(ctx, root, "model/model.json", readAll(&content)); err != nil {
				t.Fatal(err)
			}
			if string(content) != `{"trees":[]}` {
				t.Errorf("content: %s", content)
			}

			listed, err := testee.ListArtifacts(ctx, root, "model")
			if err != nil {
				t.Fatal(err)
			}
			want := []tracking.FileInfo{{Path: "model/model.json", FileSize: 12}}
			if !cmp.Equal(listed, want) {
				t.Errorf("listed:\n%s", cmp.Diff(want, listed))
			}

			err = testee.DownloadArtifact(ctx, root, "model/MLmodel", readAll(&content))
			if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if len(*got) != 0 {
		t.Errorf("local artifacts are sent to server: %+v", *got)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestArtifacts_LocalUploadError(t *testing.T) {
	h, _ := recorder(t, http.StatusOK, struct{}{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	root := t.TempDir()
	expectedErr := errors.New("fake read error")
	err := newClient(t, srv, "").UploadArtifact(
		context.Background(), root, "model/model.json", failingReader{err: expectedErr},
	)
	if !errors.Is(err, expectedErr) {
		t.Errorf("unexpected error: %v", err)
	}

	// the file is closed, so it can be removed and written again.
	dest := filepath.Join(root, "model", "model.json")
	if err := os.Remove(dest); err != nil {
		t.Fatal(err)
	}
	if err := newClient(t, srv, "").UploadArtifact(
		context.Background(), root, "model/model.json", strings.NewReader("{}"),
	); err != nil {
		t.Fatal(err)
	}
	if b, err := os.ReadFile(dest); err != nil || string(b) != "{}" {
		t.Errorf("content: %s, %v", b, err)
	}
}

func TestArtifacts_UnsupportedRoot(t *testing.T) {
	h, _ := recorder(t, http.StatusOK, struct{}{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	err := newClient(t, srv, "").UploadArtifact(
		context.Background(), "s3://bucket/0/r1/artifacts", "model/MLmodel", strings.NewReader(""),
	)
	if !errors.Is(err, rest.ErrUnsupportedArtifactRoot) {
		t.Errorf("unexpected error: %v", err)
	}
}
