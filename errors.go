package ivy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eed3si9n/ivy/conflict"
	"github.com/eed3si9n/ivy/latest"
	"github.com/eed3si9n/ivy/matcher"
	"github.com/eed3si9n/ivy/repository"
	"github.com/eed3si9n/ivy/resolve"
	"github.com/eed3si9n/ivy/version"
)

// Sentinel errors. Configuration errors wrap one of them inside a
// *ConfigError.
var (
	// ErrModuleNotFound indicates no resolver knows the requested module.
	ErrModuleNotFound = repository.ErrModuleNotFound

	// ErrUnknownResolver indicates a resolver name that is not registered.
	ErrUnknownResolver = errors.New("unknown resolver")

	// ErrUnknownMatcher indicates a pattern matcher name that is not
	// registered.
	ErrUnknownMatcher = matcher.ErrUnknownMatcher

	// ErrUnknownVersionMatcher indicates a version matcher name that is not
	// registered.
	ErrUnknownVersionMatcher = version.ErrUnknownMatcher

	// ErrUnknownConflictManager indicates a conflict manager name that is
	// not registered.
	ErrUnknownConflictManager = conflict.ErrUnknownManager

	// ErrUnknownLatestStrategy indicates a latest strategy name that is not
	// registered.
	ErrUnknownLatestStrategy = latest.ErrUnknownStrategy

	// ErrUnknownConfiguration indicates a requested root configuration the
	// module does not declare.
	ErrUnknownConfiguration = resolve.ErrUnknownConfiguration

	// ErrUnknownResolverType indicates a settings file resolver type other
	// than file, url, chain or dual.
	ErrUnknownResolverType = errors.New("unknown resolver type")

	// ErrNoResolver indicates that no resolver is configured for a module.
	ErrNoResolver = errors.New("no resolver configured")
)

// ConfigError reports a setup mistake: an unknown resolver, matcher or
// manager name. It is raised before any resolution work starts.
type ConfigError struct {
	// Kind names what was looked up, such as "resolver", "matcher" or
	// "conflict manager".
	Kind string

	Name string

	// Known lists the registered names, when available.
	Known []string

	// Err is the matching sentinel.
	Err error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%v: %q", e.Err, e.Name)
	if len(e.Known) > 0 {
		msg += " (known: " + strings.Join(e.Known, ", ") + ")"
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
