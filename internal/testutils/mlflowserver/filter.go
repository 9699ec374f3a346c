package mlflowserver

import (
	"regexp"
	"strings"

	apierr "github.com/opst/mlreg/pkg/api/types/errors"
)

var filterPattern = regexp.MustCompile(`^\s*name\s*(=|!=|LIKE|ILIKE)\s*'((?:[^'\\]|\\.)*)'\s*$`)

// nameFilter is a search filter on names: "name = 'x'", "name LIKE 'x%'" and so on.
type nameFilter func(name string) bool

func parseFilter(filter string) (nameFilter, error) {
	if strings.TrimSpace(filter) == "" {
		return func(string) bool { return true }, nil
	}
	m := filterPattern.FindStringSubmatch(filter)
	if m == nil {
		return nil, apierr.BadRequest("unsupported filter: %s", filter)
	}
	op, value := m[1], strings.ReplaceAll(m[2], `\'`, `'`)

	switch op {
	case "=":
		return func(name string) bool { return name == value }, nil
	case "!=":
		return func(name string) bool { return name != value }, nil
	}

	// LIKE: % matches any string, _ matches a character.
	pat := new(strings.Builder)
	pat.WriteString("^")
	if op == "ILIKE" {
		pat.WriteString("(?i)")
	}
	for _, r := range value {
		switch r {
		case '%':
			pat.WriteString(".*")
		case '_':
			pat.WriteString(".")
		default:
			pat.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	pat.WriteString("$")
	re, err := regexp.Compile(pat.String())
	if err != nil {
		return nil, apierr.BadRequest("unsupported filter: %s", filter)
	}
	return re.MatchString, nil
}
