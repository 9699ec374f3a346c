package profiles

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opst/mlreg/cmd/mlreg/config/open"
	yaml "gopkg.in/yaml.v3"
)

var (
	ErrProfileStoreNotFound = errors.New("profile store is not found")
	ErrCannotCreateConfig   = errors.New("cannot create profile store")
	ErrCannotUpdateConfig   = errors.New("cannot update profile store")
	ErrProfileInvalid       = errors.New("profile is invalid")
	ErrTokenExpired         = errors.New("token is expired")
)

// ProfileStore maps profile names to profiles.
type ProfileStore map[string]*Profile

type Cert struct {
	// base64 encoded PEM of CA certificates
	CA string `yaml:"ca,omitempty"`
}

// Profile tells how to reach a tracking server.
type Profile struct {
	// root URL of the tracking server, like https://mlflow.example.com
	ApiRoot string `yaml:"apiRoot"`

	// bearer token. Optional.
	Token string `yaml:"token,omitempty"`

	Cert Cert `yaml:"cert,omitempty"`
}

func verifyUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https")
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// TokenExpiry returns the expiration time of the token, when the token is a JWT with "exp".
//
// The signature is not verified; the server does.
func (p *Profile) TokenExpiry() (time.Time, bool) {
	if strings.Count(p.Token, ".") != 2 {
		return time.Time{}, false
	}
	tok, _, err := jwt.NewParser().ParseUnverified(p.Token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Verify checks the profile.
//
// It returns ErrProfileInvalid for broken values,
// and ErrTokenExpired when the token is a JWT which has been expired at now.
func (p *Profile) Verify(now time.Time) error {
	if !verifyUrl(p.ApiRoot) {
		return fmt.Errorf("%w: apiRoot is not http(s) URL: %s", ErrProfileInvalid, p.ApiRoot)
	}
	if p.Cert.CA != "" && !verifyPEM(p.Cert.CA) {
		return fmt.Errorf("%w: cert.ca is not base64 encoded PEM", ErrProfileInvalid)
	}
	if exp, ok := p.TokenExpiry(); ok && !now.Before(exp) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return nil
}

// LoadProfileStore reads the profile store file.
func LoadProfileStore(path string) (ProfileStore, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s: %w", ErrProfileStoreNotFound, path, err)
		}
		return nil, err
	}
	return Unmarshal(buf)
}

func Unmarshal(buf []byte) (ProfileStore, error) {
	ret := ProfileStore{}
	if err := yaml.Unmarshal(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Save writes the store into path, with permission 0600.
//
// The previous content is kept as path + ".backup" until writing completes.
// If writing fails, the backup is left for recovery.
func (ps ProfileStore) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	f, err := open.Private(path)
	switch {
	case err == nil:
	case os.IsPermission(err):
		return fmt.Errorf("%w: no permission to write %s", ErrCannotUpdateConfig, path)
	case os.IsNotExist(err):
		if f, err = open.NewSafeFile(path); err != nil {
			return fmt.Errorf("%w at %s: %w", ErrCannotCreateConfig, path, err)
		}
	default:
		return err
	}
	defer f.Close()

	bkpath := path + ".backup"
	bk, err := open.NewSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer bk.Close()
	if _, err := io.Copy(bk, f); err != nil {
		os.Remove(bkpath)
		return err
	}

	buf, err := yaml.Marshal(ps)
	if err != nil {
		os.Remove(bkpath)
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	return os.Remove(bkpath)
}
