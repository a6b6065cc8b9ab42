package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// IdentRe matches valid identifiers used for instance names and template IDs.
// Must start with alphanumeric, followed by alphanumeric, dots, hyphens, or underscores.
var IdentRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MaxIdentLen is the maximum length for identifiers.
const MaxIdentLen = 128

// Ident validates a string as a valid identifier.
func Ident(s string) bool {
	return len(s) > 0 && len(s) <= MaxIdentLen && IdentRe.MatchString(s)
}

// packageSegmentRe matches one dot-separated segment of an Android
// application id.
var packageSegmentRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// settingKeyRe matches keys accepted by `settings put`.
var settingKeyRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.:-]*$`)

// MaxNameLen bounds package names and setting keys.
const MaxNameLen = 255

// PackageName checks that s is a well-formed Android package name such as
// "com.example.game". The single-segment "android" framework package is
// accepted.
func PackageName(s string) error {
	if s == "" {
		return fmt.Errorf("package name is required")
	}
	if len(s) > MaxNameLen {
		return fmt.Errorf("package name longer than %d characters", MaxNameLen)
	}
	for _, segment := range strings.Split(s, ".") {
		if !packageSegmentRe.MatchString(segment) {
			return fmt.Errorf("invalid package name %q", s)
		}
	}
	return nil
}

// SettingKey checks that s can be passed to `settings get/put` verbatim.
func SettingKey(s string) error {
	if s == "" {
		return fmt.Errorf("setting key is required")
	}
	if len(s) > MaxNameLen {
		return fmt.Errorf("setting key longer than %d characters", MaxNameLen)
	}
	if !settingKeyRe.MatchString(s) {
		return fmt.Errorf("invalid setting key %q", s)
	}
	return nil
}

// HTTPURL ensures the URL uses http or https scheme and has a non-empty host.
func HTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		// OK
	case "":
		return fmt.Errorf("URL missing scheme: %s", rawURL)
	default:
		return fmt.Errorf("URL scheme %q not allowed (only http/https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL missing host: %s", rawURL)
	}
	return nil
}

// Origin validates a browser origin ("scheme://host[:port]") accepted by
// the daemon's CORS policy. "*" allows every origin.
func Origin(raw string) error {
	if raw == "*" {
		return nil
	}
	if err := HTTPURL(raw); err != nil {
		return err
	}
	u, _ := url.Parse(raw)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("origin %q must not carry a path, query or credentials", raw)
	}
	return nil
}
