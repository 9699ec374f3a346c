package common

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ProfileFile names the profile to use in the directory and its descendants.
	ProfileFile = ".mlregprofile"

	// EnvFile is the per-project defaults.
	EnvFile = "mlregenv"

	// DefaultProfile is used when no ProfileFile is found.
	DefaultProfile = "default"
)

type CommonFlags struct {
	Profile      string `flag:"profile" help:"name of profile to use"`
	ProfileStore string `flag:"profile-store" help:"path to profile store file"`
	Env          string `flag:"env" help:"path to mlregenv file"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default values of common flags for commands run in the directory from.
//
// The profile name is read from the first line of .mlregprofile, and mlregenv is used,
// in from or its nearest ancestor. The profile store is ~/.mlreg/profile .
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := &commonFlagDetection{}
	for _, o := range opt {
		detparam = o(detparam)
	}

	home := detparam.home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	if abs, err := filepath.Abs(from); err == nil {
		from = abs
	}

	profile := DefaultProfile
	env := filepath.Join(from, EnvFile)

	profileFound := false
	envFound := false
	for searchpath := from; ; {
		if !profileFound {
			candidate := filepath.Join(searchpath, ProfileFile)
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				content, err := os.ReadFile(candidate)
				if err != nil {
					return CommonFlags{}, err
				}
				profileFound = true
				first, _, _ := strings.Cut(string(content), "\n")
				if p := strings.TrimSpace(first); p != "" {
					profile = p
				}
			}
		}
		if !envFound {
			candidate := filepath.Join(searchpath, EnvFile)
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				envFound = true
				env = candidate
			}
		}

		if profileFound && envFound {
			break
		}

		next := filepath.Dir(searchpath)
		if next == searchpath {
			break
		}
		searchpath = next
	}

	return CommonFlags{
		Profile:      profile,
		ProfileStore: filepath.Join(home, ".mlreg", "profile"),
		Env:          env,
	}, nil
}
