package auth

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// SanitizeName strips markup and surrounding whitespace from a display name.
func SanitizeName(name string) string {
	return strings.TrimSpace(policy.Sanitize(name))
}
