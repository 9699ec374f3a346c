// Package versionarg reads NAME and VERSION positional arguments.
package versionarg

import (
	"fmt"

	"github.com/opst/mlreg/pkg/api/types/registry"
	"github.com/youta-t/flarc"
)

const (
	ARG_NAME    = "NAME"
	ARG_VERSION = "VERSION"
)

// Args are NAME and VERSION, in this order.
func Args() flarc.Args {
	return flarc.Args{
		{Name: ARG_NAME, Required: true, Help: "name of the registered model."},
		{Name: ARG_VERSION, Required: true, Help: "version number."},
	}
}

// Parse returns NAME and VERSION in args.
func Parse(args map[string][]string) (string, registry.Version, error) {
	name := args[ARG_NAME][0]
	v, err := registry.ParseVersion(args[ARG_VERSION][0])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %w", flarc.ErrUsage, ARG_VERSION, err)
	}
	return name, v, nil
}
