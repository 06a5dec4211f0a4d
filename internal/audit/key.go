package audit

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidTarget marks a target that cannot be normalized into a job key.
// Callers map it to a client error rather than an infrastructure failure.
var ErrInvalidTarget = errors.New("invalid target")

// NormalizeKey turns a user-supplied target into the canonical job key that
// scopes lease and cache entries. Two spellings of the same domain must map
// to the same key or deduplication breaks.
func NormalizeKey(target string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(target))
	t = strings.TrimPrefix(t, "https://")
	t = strings.TrimPrefix(t, "http://")
	t = strings.TrimPrefix(t, "www.")
	if i := strings.IndexAny(t, "/?#"); i >= 0 {
		t = t[:i]
	}
	if t == "" {
		return "", fmt.Errorf("%w: target is required", ErrInvalidTarget)
	}
	u, err := url.Parse("https://" + t)
	if err != nil || u.Hostname() == "" || u.Hostname() != t && u.Host != t {
		return "", fmt.Errorf("%w: %q is not a valid host", ErrInvalidTarget, target)
	}
	if !strings.Contains(t, ".") {
		return "", fmt.Errorf("%w: %q must be a fully qualified domain", ErrInvalidTarget, target)
	}
	return t, nil
}
