package tags

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SystemTagPrefix is the key prefix reserved by the tracking server.
//
// Tags such as "mlflow.runName" or "mlflow.source.type" are set by the server or client library.
const SystemTagPrefix = "mlflow."

const (
	KeyRunName    = SystemTagPrefix + "runName"
	KeySourceName = SystemTagPrefix + "source.name"
	KeySourceType = SystemTagPrefix + "source.type"
	KeyUser       = SystemTagPrefix + "user"
	KeyLogModel   = SystemTagPrefix + "log-model.history"
)

var ErrReservedKey = errors.New("tag key is reserved")

// Tag is a key-value pair put on runs, registered models and model versions.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// UserTag is a Tag whose key is not reserved for the system.
type UserTag Tag

func (t Tag) AsUserTag(ut *UserTag) bool {
	if strings.HasPrefix(t.Key, SystemTagPrefix) {
		return false
	}
	*ut = UserTag(t)
	return true
}

// parse string value as Tag
//
// # Args
//
// - string: "KEY:VALUE" formatted string. If not, it returns error.
func (t *Tag) Parse(s string) error {
	k, v, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("tag parse error: %s: no key", s)
	}
	k = strings.TrimSpace(k)
	if k == "" {
		return fmt.Errorf("tag parse error: %s: empty key", s)
	}
	t.Key = k
	t.Value = strings.TrimSpace(v)
	return nil
}

// parse string value as UserTag
//
// If KEY part is started with "mlflow.", it returns ErrReservedKey.
func (ut *UserTag) Parse(s string) error {
	t := new(Tag)
	if err := t.Parse(s); err != nil {
		return err
	}
	if !t.AsUserTag(ut) {
		return fmt.Errorf(`%w: "%s..." is for system tags`, ErrReservedKey, SystemTagPrefix)
	}
	return nil
}

// UnmarshalYAML accepts both of "KEY:VALUE" scalar and {key: ..., value: ...} mapping.
func (t *Tag) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		return t.Parse(n.Value)
	}

	dat := new(struct {
		Key   *string `yaml:"key"`
		Value *string `yaml:"value"`
	})
	if err := n.Decode(dat); err != nil {
		return errors.New("failed to parse Tag")
	}
	if dat.Key == nil {
		return errors.New(`field "key" is missing`)
	}
	t.Key = *dat.Key
	if dat.Value != nil {
		t.Value = *dat.Value
	}
	return nil
}

func (t Tag) String() string {
	return t.Key + ":" + t.Value
}

func (t Tag) Equal(o Tag) bool {
	return t.Key == o.Key && t.Value == o.Value
}

// Lookup finds the value of the first Tag with the key.
func Lookup(tags []Tag, key string) (string, bool) {
	for _, t := range tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}
