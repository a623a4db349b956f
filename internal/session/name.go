package session

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/matheus3301/typec/internal/config"
)

const DefaultSessionName = "main"

// ErrInvalidName is returned for names that cannot be used as a session
// directory.
var ErrInvalidName = errors.New("invalid session name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidName, name, nameRegexp)
	}
	return nil
}

// Resolve picks the session name: the --session flag, then
// TYPEC_DEFAULT_SESSION or default_session from config.toml, then "main".
// An invalid configured default is skipped; an invalid flag is returned as
// is so the caller can report it.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Resolve(ConfigPath())
	if err == nil && ValidateName(cfg.DefaultSession) == nil {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
