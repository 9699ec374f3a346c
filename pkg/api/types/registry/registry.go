package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apitags "github.com/opst/mlreg/pkg/api/types/tags"
)

var ErrInvalidVersion = errors.New("invalid model version")
var ErrUnknownStage = errors.New("unknown stage")

// Version is a number of a model version.
//
// Versions are numbered from 1 by the registry, per registered model.
// The REST API sends it as a decimal string ("3"); numbers are also accepted.
type Version int64

func ParseVersion(s string) (Version, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return Version(v), nil
}

func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Version) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		got, err := ParseVersion(s)
		if err != nil {
			return err
		}
		*v = got
		return nil
	}

	var n int64
	if err := json.Unmarshal(b, &n); err != nil || n < 1 {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, string(b))
	}
	*v = Version(n)
	return nil
}

// Stage is a lifecycle label of a model version.
//
// Which transitions are allowed is decided by the registry, not by this type.
type Stage string

const (
	StageNone       Stage = "None"
	StageStaging    Stage = "Staging"
	StageProduction Stage = "Production"
	StageArchived   Stage = "Archived"
)

var Stages = []Stage{StageNone, StageStaging, StageProduction, StageArchived}

// ParseStage parses stage name case-insensitively.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q (should be one of None, Staging, Production or Archived)", ErrUnknownStage, s)
}

func (s Stage) String() string {
	return string(s)
}

// Status is the registration status of a model version.
type Status string

const (
	PendingRegistration Status = "PENDING_REGISTRATION"
	FailedRegistration  Status = "FAILED_REGISTRATION"
	Ready               Status = "READY"
)

type RegisteredModel struct {
	Name                 string         `json:"name"`
	CreationTimestamp    int64          `json:"creation_timestamp,omitempty"`
	LastUpdatedTimestamp int64          `json:"last_updated_timestamp,omitempty"`
	UserId               string         `json:"user_id,omitempty"`
	Description          string         `json:"description,omitempty"`
	LatestVersions       []ModelVersion `json:"latest_versions,omitempty"`
	Tags                 []apitags.Tag  `json:"tags,omitempty"`
}

type ModelVersion struct {
	Name                 string        `json:"name"`
	Version              Version       `json:"version"`
	CreationTimestamp    int64         `json:"creation_timestamp,omitempty"`
	LastUpdatedTimestamp int64         `json:"last_updated_timestamp,omitempty"`
	UserId               string        `json:"user_id,omitempty"`
	CurrentStage         Stage         `json:"current_stage,omitempty"`
	Description          string        `json:"description,omitempty"`
	Source               string        `json:"source,omitempty"`
	RunId                string        `json:"run_id,omitempty"`
	Status               Status        `json:"status,omitempty"`
	StatusMessage        string        `json:"status_message,omitempty"`
	Tags                 []apitags.Tag `json:"tags,omitempty"`
	RunLink              string        `json:"run_link,omitempty"`
}

// Latest returns the model version with the greatest version number.
//
// The second return value is false if mvs is empty.
func Latest(mvs []ModelVersion) (ModelVersion, bool) {
	if len(mvs) == 0 {
		return ModelVersion{}, false
	}
	latest := mvs[0]
	for _, mv := range mvs[1:] {
		if latest.Version < mv.Version {
			latest = mv
		}
	}
	return latest, true
}
