// Package modeluri parses the URIs which point a stored model.
//
//   - runs:/<run_id>/<artifact_path> : a model logged as artifacts of a run
//   - models:/<name>/<version>       : a version of a registered model
//   - models:/<name>/<stage>         : the latest version in the stage
//   - models:/<name>/latest          : the latest version
package modeluri

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/opst/mlreg/pkg/api/types/registry"
)

var ErrInvalidURI = errors.New("invalid model uri")

type Scheme string

const (
	Runs   Scheme = "runs"
	Models Scheme = "models"
)

// Latest is the special version name for the latest version.
const Latest = "latest"

type URI struct {
	Scheme Scheme

	// for runs:/
	RunId        string
	ArtifactPath string

	// for models:/
	Name    string
	Version registry.Version // zero if Stage or Latest
	Stage   registry.Stage   // empty if Version or Latest
	Latest  bool
}

func RunsURI(runId, artifactPath string) URI {
	return URI{Scheme: Runs, RunId: runId, ArtifactPath: strings.Trim(path.Clean("/"+artifactPath), "/")}
}

func ModelsURI(name string, version registry.Version) URI {
	return URI{Scheme: Models, Name: name, Version: version}
}

func Parse(s string) (URI, error) {
	scheme, rest, ok := strings.Cut(s, ":/")
	if !ok {
		return URI{}, fmt.Errorf(`%w: %q: should start with "runs:/" or "models:/"`, ErrInvalidURI, s)
	}
	rest = strings.TrimLeft(rest, "/")

	switch Scheme(scheme) {
	case Runs:
		runId, p, _ := strings.Cut(rest, "/")
		p = strings.Trim(p, "/")
		if runId == "" || p == "" {
			return URI{}, fmt.Errorf("%w: %q: should be runs:/<run_id>/<artifact_path>", ErrInvalidURI, s)
		}
		clean := path.Clean("/" + p)
		if clean == "/" || strings.Contains(p, "..") {
			return URI{}, fmt.Errorf("%w: %q: artifact path should not go up", ErrInvalidURI, s)
		}
		return URI{Scheme: Runs, RunId: runId, ArtifactPath: strings.TrimPrefix(clean, "/")}, nil

	case Models:
		rest = strings.TrimRight(rest, "/")
		i := strings.LastIndex(rest, "/")
		if i <= 0 || i == len(rest)-1 {
			return URI{}, fmt.Errorf("%w: %q: should be models:/<name>/<version|stage|latest>", ErrInvalidURI, s)
		}
		name, which := rest[:i], rest[i+1:]
		u := URI{Scheme: Models, Name: name}
		if strings.EqualFold(which, Latest) {
			u.Latest = true
			return u, nil
		}
		if v, err := registry.ParseVersion(which); err == nil {
			u.Version = v
			return u, nil
		}
		st, err := registry.ParseStage(which)
		if err != nil {
			return URI{}, fmt.Errorf("%w: %q: %q is neither version, stage nor latest", ErrInvalidURI, s, which)
		}
		u.Stage = st
		return u, nil
	}

	return URI{}, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidURI, s, scheme)
}

func (u URI) String() string {
	switch u.Scheme {
	case Runs:
		return fmt.Sprintf("runs:/%s/%s", u.RunId, u.ArtifactPath)
	case Models:
		switch {
		case u.Latest:
			return fmt.Sprintf("models:/%s/%s", u.Name, Latest)
		case u.Stage != "":
			return fmt.Sprintf("models:/%s/%s", u.Name, u.Stage)
		default:
			return fmt.Sprintf("models:/%s/%s", u.Name, u.Version)
		}
	}
	return ""
}
