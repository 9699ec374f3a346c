package tags_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlreg/pkg/api/types/tags"
	"gopkg.in/yaml.v3"
)

func TestTag_Parse(t *testing.T) {
	for in, expected := range map[string]tags.Tag{
		"team:ml":          {Key: "team", Value: "ml"},
		" team : ml ":      {Key: "team", Value: "ml"},
		"url:http://x:80/": {Key: "url", Value: "http://x:80/"},
		"empty:":           {Key: "empty", Value: ""},
	} {
		t.Run(in, func(t *testing.T) {
			got := tags.Tag{}
			if err := got.Parse(in); err != nil {
				t.Fatal(err)
			}
			if !got.Equal(expected) {
				t.Errorf("got %+v", got)
			}
		})
	}

	for _, in := range []string{"novalue", ":value"} {
		t.Run("error: "+in, func(t *testing.T) {
			if err := new(tags.Tag).Parse(in); err == nil {
				t.Error("no error")
			}
		})
	}
}

func TestUserTag_Parse(t *testing.T) {
	ut := tags.UserTag{}
	if err := ut.Parse("team:ml"); err != nil {
		t.Fatal(err)
	}
	if err := ut.Parse("mlflow.runName:x"); !errors.Is(err, tags.ErrReservedKey) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTag_UnmarshalYAML(t *testing.T) {
	doc := `
tag:
  - "team:ml"
  - key: owner
    value: alice
`
	got := struct {
		Tag []tags.Tag `yaml:"tag"`
	}{}
	if err := yaml.Unmarshal([]byte(doc), &got); err != nil {
		t.Fatal(err)
	}
	expected := []tags.Tag{{Key: "team", Value: "ml"}, {Key: "owner", Value: "alice"}}
	if diff := cmp.Diff(expected, got.Tag); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if err := yaml.Unmarshal([]byte("tag: [{value: x}]"), &got); err == nil {
		t.Error("tag without key is accepted")
	}
}

func TestLookup(t *testing.T) {
	ts := []tags.Tag{{Key: tags.KeyRunName, Value: "r1"}, {Key: "k", Value: "v"}}
	if v, ok := tags.Lookup(ts, tags.KeyRunName); !ok || v != "r1" {
		t.Errorf("got (%s, %v)", v, ok)
	}
	if _, ok := tags.Lookup(ts, "missing"); ok {
		t.Error("found missing key")
	}
}
