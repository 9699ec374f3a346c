// Package args provides flag.Value implementations for command line flags.
package args

import (
	"fmt"
	"strings"

	apitags "github.com/opst/mlreg/pkg/api/types/tags"
)

// Adapter makes a flag.Value from a parser function.
//
// Use Parser to create one.
type Adapter[T interface{ String() string }] struct {
	value  T
	parser func(string) (T, error)
	isSet  bool
}

func (i *Adapter[T]) String() string {
	if i != nil && i.isSet {
		return i.value.String()
	}
	return ""
}

func (i *Adapter[T]) Set(s string) error {
	v, err := i.parser(s)
	if err != nil {
		return err
	}
	i.isSet = true
	i.value = v
	return nil
}

// Value returns the parsed value, or the zero value of T if not set.
func (i *Adapter[T]) Value() T {
	if i == nil {
		return *new(T)
	}
	return i.value
}

func (i *Adapter[T]) IsSet() bool {
	return i != nil && i.isSet
}

func Parser[T interface{ String() string }](parser func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parser: parser}
}

// Argslice collects every value of a repeated flag.
type Argslice []string

func (s *Argslice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, " ")
}

func (s *Argslice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Values returns collected values. It is safe to call on nil.
func (s *Argslice) Values() []string {
	if s == nil {
		return []string{}
	}
	return *s
}

// Tags collects "KEY:VALUE" flags.
//
// System tags (mlflow.*) are rejected.
type Tags []apitags.Tag

func (t *Tags) String() string {
	if t == nil || len(*t) == 0 {
		return ""
	}
	strs := make([]string, len(*t))
	for i, tag := range *t {
		strs[i] = tag.String()
	}
	return strings.Join(strs, " ")
}

func (t *Tags) Set(v string) error {
	ut := new(apitags.UserTag)
	if err := ut.Parse(v); err != nil {
		return fmt.Errorf("--tag %s: %w", v, err)
	}
	*t = append(*t, apitags.Tag(*ut))
	return nil
}

// Values returns collected tags. It is safe to call on nil.
func (t *Tags) Values() []apitags.Tag {
	if t == nil {
		return []apitags.Tag{}
	}
	return *t
}
