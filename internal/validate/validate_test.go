package validate

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// PackageName
// ---------------------------------------------------------------------------

func TestPackageName_Valid(t *testing.T) {
	for _, s := range []string{
		"com.example.game",
		"android",
		"com.android.settings",
		"org.mozilla.firefox_beta",
		"a.B2.c_3",
	} {
		if err := PackageName(s); err != nil {
			t.Errorf("PackageName(%q) = %v, want nil", s, err)
		}
	}
}

func TestPackageName_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"com..example",
		".com.example",
		"com.example.",
		"com.1example",
		"com.example game",
		"com/example",
		"com.example;rm",
		"com." + strings.Repeat("a", MaxNameLen),
	} {
		if err := PackageName(s); err == nil {
			t.Errorf("PackageName(%q) = nil, want error", s)
		}
	}
}

// ---------------------------------------------------------------------------
// SettingKey
// ---------------------------------------------------------------------------

func TestSettingKey_Valid(t *testing.T) {
	for _, s := range []string{
		"show_touches",
		"animator_duration_scale",
		"adb_enabled",
		"policy_control",
		"display.density-forced",
	} {
		if err := SettingKey(s); err != nil {
			t.Errorf("SettingKey(%q) = %v, want nil", s, err)
		}
	}
}

func TestSettingKey_Invalid(t *testing.T) {
	tests := []struct {
		key    string
		errMsg string
	}{
		{"", "required"},
		{"has space", "invalid"},
		{"_leading", "invalid"},
		{"semi;colon", "invalid"},
		{"quote'd", "invalid"},
		{strings.Repeat("k", MaxNameLen+1), "longer"},
	}
	for _, tc := range tests {
		err := SettingKey(tc.key)
		if err == nil {
			t.Fatalf("SettingKey(%q): expected error, got nil", tc.key)
		}
		if !strings.Contains(err.Error(), tc.errMsg) {
			t.Errorf("SettingKey(%q) error = %q, want it to contain %q", tc.key, err.Error(), tc.errMsg)
		}
	}
}

// ---------------------------------------------------------------------------
// HTTPURL / Origin
// ---------------------------------------------------------------------------

func TestHTTPURL_DisallowedSchemes(t *testing.T) {
	tests := []struct {
		url    string
		errMsg string
	}{
		{"file:///etc/passwd", "not allowed"},
		{"ftp://example.com/file", "not allowed"},
		{"javascript:alert(1)", "not allowed"},
	}
	for _, tc := range tests {
		err := HTTPURL(tc.url)
		if err == nil {
			t.Fatalf("HTTPURL(%q): expected error, got nil", tc.url)
		}
		if !strings.Contains(err.Error(), tc.errMsg) {
			t.Errorf("HTTPURL(%q) error = %q, want it to contain %q", tc.url, err.Error(), tc.errMsg)
		}
	}
}

func TestHTTPURL_MissingSchemeOrHost(t *testing.T) {
	if err := HTTPURL("example.com"); err == nil || !strings.Contains(err.Error(), "missing scheme") {
		t.Errorf("expected missing scheme error, got %v", err)
	}
	for _, url := range []string{"http://", "https://", "http:///path/only"} {
		err := HTTPURL(url)
		if err == nil || !strings.Contains(err.Error(), "missing host") {
			t.Errorf("HTTPURL(%q) = %v, want missing host error", url, err)
		}
	}
}

func TestOrigin(t *testing.T) {
	for _, s := range []string{"*", "http://localhost:5173", "https://geto.example.com", "http://192.168.1.20:8080/"} {
		if err := Origin(s); err != nil {
			t.Errorf("Origin(%q) = %v, want nil", s, err)
		}
	}
	for _, s := range []string{"", "localhost:5173", "http://host/app", "http://host?x=1", "http://user:pw@host", "ws://host"} {
		if err := Origin(s); err == nil {
			t.Errorf("Origin(%q) = nil, want error", s)
		}
	}
}

// ---------------------------------------------------------------------------
// Ident
// ---------------------------------------------------------------------------

func TestIdent_Valid(t *testing.T) {
	for _, s := range []string{
		"default", "work-phone", "pixel.7", "test_device",
		"Instance123", "a", "9start",
		strings.Repeat("a", MaxIdentLen),
	} {
		if !Ident(s) {
			t.Errorf("Ident(%q) = false, want true", s)
		}
	}
}

func TestIdent_Invalid(t *testing.T) {
	for _, s := range []string{
		"", "-start", ".start", "_start",
		"has space", "has/slash", "../escape", "café",
		strings.Repeat("a", MaxIdentLen+1),
	} {
		if Ident(s) {
			t.Errorf("Ident(%q) = true, want false", s)
		}
	}
}
