package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const minimalJSON = `{
  "url_template": "https://www.homegate.ch/mieten/immobilien/plz-{postcode}/trefferliste?ep={page}&be={distance}",
  "postcodes": ["3000", "3006"],
  "distances": ["2000"],
  "search_terms": ["Balkon", "Garten"],
  "possible_file": "possible.json",
  "rejected_file": "rejected.json"
}`

func TestLoad_DefaultsApplied(t *testing.T) {
	s, err := Load(writeFile(t, "search.json", minimalJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.Postcodes) != 2 || s.Postcodes[1] != "3006" {
		t.Errorf("unexpected postcodes %v", s.Postcodes)
	}
	if s.HostPrefix != "https://www.homegate.ch" {
		t.Errorf("unexpected host prefix %q", s.HostPrefix)
	}
	if s.PageSize != 20 {
		t.Errorf("expected page size 20, got %d", s.PageSize)
	}
	if s.PossiblePolicy != "recheck" {
		t.Errorf("expected recheck policy, got %q", s.PossiblePolicy)
	}
	if s.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", s.HTTP.Timeout)
	}
	if s.HTTP.RequestsPerSecond != 1 {
		t.Errorf("expected 1 rps, got %v", s.HTTP.RequestsPerSecond)
	}
	if s.Storage.Backend != BackendJSON {
		t.Errorf("expected json backend, got %q", s.Storage.Backend)
	}
}

func TestLoad_YAMLWithOverrides(t *testing.T) {
	yaml := `
url_template: "https://example.test/{postcode}/{distance}?page={page}"
postcodes: ["8000"]
distances: ["5000"]
search_terms: ["Waschturm"]
search_name: Zurich
possible_policy: skip
page_size: 25
http:
  timeout: 10s
  requests_per_second: 0.5
  tls_profile: chrome
storage:
  backend: sqlite
  dsn: rentwatch.db
`
	s, err := Load(writeFile(t, "search.yaml", yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SearchName != "Zurich" || s.PossiblePolicy != "skip" || s.PageSize != 25 {
		t.Errorf("unexpected search %+v", s)
	}
	if s.HTTP.Timeout != 10*time.Second || s.HTTP.RequestsPerSecond != 0.5 || s.HTTP.TLSProfile != "chrome" {
		t.Errorf("unexpected http config %+v", s.HTTP)
	}
	if s.Storage.Backend != BackendSQLite || s.Storage.DSN != "rentwatch.db" {
		t.Errorf("unexpected storage %+v", s.Storage)
	}
}

func TestLoad_NumericPostcodes(t *testing.T) {
	s, err := Load(writeFile(t, "search.json", `{
  "url_template": "https://example.test/{postcode}/{distance}/{page}",
  "postcodes": [3000],
  "distances": [2000],
  "search_terms": ["Balkon"],
  "possible_file": "p.json",
  "rejected_file": "r.json"
}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Postcodes[0] != "3000" || s.Distances[0] != "2000" {
		t.Errorf("expected numbers decoded as strings, got %v %v", s.Postcodes, s.Distances)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RENTWATCH_SEARCH_NAME", "from-env")
	t.Setenv("RENTWATCH_HTTP_TIMEOUT", "5s")

	s, err := Load(writeFile(t, "search.json", minimalJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SearchName != "from-env" {
		t.Errorf("expected env search name, got %q", s.SearchName)
	}
	if s.HTTP.Timeout != 5*time.Second {
		t.Errorf("expected env timeout, got %s", s.HTTP.Timeout)
	}
}

func TestLoad_MissingKey(t *testing.T) {
	_, err := Load(writeFile(t, "search.json", `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"]}`))
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestLoad_MissingStateFile(t *testing.T) {
	_, err := Load(writeFile(t, "search.json", `{
  "url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"],
  "possible_file": "p.json"
}`))
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey for rejected_file, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"no page placeholder": `{"url_template": "x", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"], "possible_file": "p", "rejected_file": "r"}`,
		"bad policy":          `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"], "possible_file": "p", "rejected_file": "r", "possible_policy": "sometimes"}`,
		"bad backend":         `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"], "storage": {"backend": "redis"}}`,
		"sqlite without dsn":  `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"], "storage": {"backend": "sqlite"}}`,
		"bad tls profile":     `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"], "possible_file": "p", "rejected_file": "r", "http": {"tls_profile": "netscape"}}`,
		"zero page size":      `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": ["a"], "possible_file": "p", "rejected_file": "r", "page_size": 0}`,
		"empty terms":         `{"url_template": "x{page}", "postcodes": ["1"], "distances": ["1"], "search_terms": [], "possible_file": "p", "rejected_file": "r"}`,
		"malformed json":      `{"url_template": `,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "search.json", content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEmail(t *testing.T) {
	t.Setenv("RENTWATCH_SMTP_PASSWORD", "secret")

	e, err := LoadEmail(writeFile(t, "email.json", `{
  "smtp_server": "smtp.example.com",
  "smtp_port": 465,
  "smtp_username": "me@example.com",
  "email_recipient": "you@example.com"
}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.SMTPServer != "smtp.example.com" || e.SMTPPort != 465 {
		t.Errorf("unexpected email config %+v", e)
	}
	if e.SMTPPassword != "secret" {
		t.Errorf("expected password from env, got %q", e.SMTPPassword)
	}
}

func TestLoadEmail_EnvOnly(t *testing.T) {
	e, err := LoadEmail("")
	if err != nil || e != nil {
		t.Fatalf("expected no email config, got %+v, %v", e, err)
	}

	t.Setenv("RENTWATCH_SMTP_SERVER", "smtp.example.com")
	t.Setenv("RENTWATCH_EMAIL_RECIPIENT", "you@example.com")
	e, err = LoadEmail("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e == nil || e.SMTPServer != "smtp.example.com" || e.SMTPPort != 587 {
		t.Errorf("unexpected email config %+v", e)
	}
}

func TestLoadEmail_MissingRecipient(t *testing.T) {
	_, err := LoadEmail(writeFile(t, "email.json", `{"smtp_server": "smtp.example.com"}`))
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	p := writeFile(t, ".env", "RENTWATCH_TEST_DOTENV=loaded\n")
	t.Setenv("RENTWATCH_TEST_DOTENV", "")
	_ = os.Unsetenv("RENTWATCH_TEST_DOTENV")

	if err := LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("RENTWATCH_TEST_DOTENV"); got != "loaded" {
		t.Errorf("expected variable from .env, got %q", got)
	}
}
