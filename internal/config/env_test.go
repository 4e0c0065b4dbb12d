package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEnvFile_MissingIsNoError(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing file should return nil: %v", err)
	}
}

func TestLoadEnvFile_FeedsLoad(t *testing.T) {
	os.Clearenv()
	path := writeEnvFile(t, `
# provider settings
IPTV_DECK_PROVIDER_URL=http://host:8080
IPTV_DECK_PROVIDER_USER=alice
IPTV_DECK_PROVIDER_PASS = s3cret
`)
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	c := Load()
	if c.ProviderBaseURL != "http://host:8080" || c.ProviderUser != "alice" || c.ProviderPass != "s3cret" {
		t.Errorf("provider = %q %q %q", c.ProviderBaseURL, c.ProviderUser, c.ProviderPass)
	}
}

func TestLoadEnvFile_Unquote(t *testing.T) {
	os.Clearenv()
	path := writeEnvFile(t, `
DOUBLE="two words"
SINGLE='also two'
BARE=plain
`)
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("DOUBLE"); got != "two words" {
		t.Errorf("DOUBLE = %q", got)
	}
	if got := os.Getenv("SINGLE"); got != "also two" {
		t.Errorf("SINGLE = %q", got)
	}
	if got := os.Getenv("BARE"); got != "plain" {
		t.Errorf("BARE = %q", got)
	}
}

func TestLoadEnvFile_SkipsMalformedLines(t *testing.T) {
	os.Clearenv()
	path := writeEnvFile(t, `
GOOD=1
no equals sign here
=valueWithoutKey
# GONE=2
`)
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("GOOD") != "1" {
		t.Errorf("GOOD = %q", os.Getenv("GOOD"))
	}
	if os.Getenv("GONE") != "" {
		t.Error("commented line must not be applied")
	}
}
