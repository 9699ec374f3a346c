package rest_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/cmd/mlreg/config/profiles"
	cerr "github.com/opst/mlreg/cmd/mlreg/errors"
	"github.com/opst/mlreg/cmd/mlreg/rest"
	apierr "github.com/opst/mlreg/pkg/api/types/errors"
	"github.com/opst/mlreg/pkg/api/types/tracking"
	"github.com/opst/mlreg/pkg/utils/try"
)

// request is what a handler has received.
type request struct {
	Method string
	Path   string
	Query  map[string][]string
	Auth   string
	Body   map[string]any
}

// recorder returns a handler which records requests and responds with status and response.
func recorder(t *testing.T, status int, response any) (http.Handler, *[]request) {
	t.Helper()
	got := []request{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		req := request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
		}
		if b, err := io.ReadAll(r.Body); err != nil {
			t.Error(err)
		} else if len(b) != 0 {
			if err := json.Unmarshal(b, &req.Body); err != nil {
				t.Errorf("request body is not JSON: %s", string(b))
			}
		}
		got = append(got, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Error(err)
		}
	})
	return h, &got
}

func newClient(t *testing.T, srv *httptest.Server, token string) rest.MLflowClient {
	t.Helper()
	return try.To(rest.NewClient(&profiles.Profile{ApiRoot: srv.URL, Token: token})).OrFatal(t)
}

func TestNewClient(t *testing.T) {
	t.Run("it rejects broken profile", func(t *testing.T) {
		_, err := rest.NewClient(&profiles.Profile{ApiRoot: "ftp://example.com"})
		if !errors.Is(err, profiles.ErrProfileInvalid) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it trusts CA certificate in the profile", func(t *testing.T) {
		h, got := recorder(t, http.StatusOK, tracking.RunResponse{
			Run: tracking.Run{Info: tracking.RunInfo{RunId: "r1"}},
		})
		srv := httptest.NewTLSServer(h)
		defer srv.Close()

		ca := base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{
			Type: "CERTIFICATE", Bytes: srv.Certificate().Raw,
		}))
		testee := try.To(rest.NewClient(&profiles.Profile{
			ApiRoot: srv.URL, Cert: profiles.Cert{CA: ca},
		})).OrFatal(t)

		run, err := testee.GetRun(context.Background(), "r1")
		if err != nil {
			t.Fatal(err)
		}
		if run.Info.RunId != "r1" || len(*got) != 1 {
			t.Errorf("unexpected result: %+v, requests: %+v", run, *got)
		}
	})

	t.Run("it does not trust unknown CA", func(t *testing.T) {
		h, _ := recorder(t, http.StatusOK, struct{}{})
		srv := httptest.NewTLSServer(h)
		defer srv.Close()

		testee := newClient(t, srv, "")
		if _, err := testee.GetRun(context.Background(), "r1"); err == nil {
			t.Error("request to untrusted server has succeeded")
		}
	})
}

func TestErrorResponse(t *testing.T) {
	type When struct {
		status int
		body   any
	}
	type Then struct {
		is          error
		wantMessage string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			h, _ := recorder(t, when.status, when.body)
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := newClient(t, srv, "").GetRun(context.Background(), "r1")
			if err == nil {
				t.Fatal("no error")
			}
			var ce cerr.CUIError
			if !errors.As(err, &ce) {
				t.Errorf("error is not CUIError: %#v", err)
			}
			if then.is != nil && !errors.Is(err, then.is) {
				t.Errorf("error is not %v: %v", then.is, err)
			}
			if err.Error() != then.wantMessage {
				t.Errorf("message:\n===actual===\n%s\n===expected===\n%s", err.Error(), then.wantMessage)
			}
		}
	}

	t.Run("not found", theory(
		When{
			status: http.StatusNotFound,
			body:   apierr.ErrorMessage{ErrorCode: apierr.ResourceDoesNotExist, Message: "Run 'r1' not found"},
		},
		Then{
			is:          apierr.ErrResourceDoesNotExist,
			wantMessage: "run r1 is not found\nRESOURCE_DOES_NOT_EXIST: Run 'r1' not found",
		},
	))

	t.Run("server error", theory(
		When{
			status: http.StatusInternalServerError,
			body:   apierr.ErrorMessage{ErrorCode: apierr.InternalError, Message: "oops"},
		},
		Then{
			is:          apierr.ErrorMessage{ErrorCode: apierr.InternalError},
			wantMessage: "server error on getting run\nINTERNAL_ERROR: oops",
		},
	))

	t.Run("not an error payload", theory(
		When{status: http.StatusBadGateway, body: "bad gateway"},
		Then{wantMessage: "server error on getting run\n\"bad gateway\"\n"},
	))
}

func TestRequestHasBearerToken(t *testing.T) {
	h, got := recorder(t, http.StatusOK, struct{}{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	if err := newClient(t, srv, "s3cret").SetTag(context.Background(), "r1", "k", "v"); err != nil {
		t.Fatal(err)
	}
	want := []request{{
		Method: http.MethodPost,
		Path:   "/api/2.0/mlflow/runs/set-tag",
		Query:  map[string][]string{},
		Auth:   "Bearer s3cret",
		Body:   map[string]any{"run_id": "r1", "key": "k", "value": "v"},
	}}
	if !cmp.Equal(*got, want) {
		t.Errorf("requests:\n%s", cmp.Diff(want, *got))
	}
}

func TestApiRootWithPathPrefix(t *testing.T) {
	h, got := recorder(t, http.StatusOK, struct{}{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	testee := try.To(rest.NewClient(&profiles.Profile{ApiRoot: srv.URL + "/mlflow/"})).OrFatal(t)
	if err := testee.LogParam(context.Background(), "r1", "max_depth", "5"); err != nil {
		t.Fatal(err)
	}
	if len(*got) != 1 || (*got)[0].Path != "/mlflow/api/2.0/mlflow/runs/log-parameter" {
		t.Errorf("requests: %+v", *got)
	}
}
