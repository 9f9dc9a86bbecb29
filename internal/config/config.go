// Package config loads search and email configuration files through viper.
// Every key can be overridden by a RENTWATCH_ environment variable, with
// dots in nested keys replaced by underscores (RENTWATCH_HTTP_TIMEOUT).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/rentwatch/internal/classify"
	"github.com/FranksOps/rentwatch/internal/fingerprint"
	"github.com/FranksOps/rentwatch/internal/listing"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RENTWATCH"

// ErrMissingKey is returned when a required key is absent.
var ErrMissingKey = errors.New("missing required config key")

// Storage backends.
const (
	BackendJSON     = "json"
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// HTTP tunes the page fetcher.
type HTTP struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Jitter            float64       `mapstructure:"jitter"`
	TLSProfile        string        `mapstructure:"tls_profile"`
	UserAgents        []string      `mapstructure:"user_agents"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

// Storage selects where classification state lives.
type Storage struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// Search is one search configuration. It is immutable for a run.
type Search struct {
	URLTemplate  string   `mapstructure:"url_template"`
	Postcodes    []string `mapstructure:"postcodes"`
	Distances    []string `mapstructure:"distances"`
	SearchTerms  []string `mapstructure:"search_terms"`
	PossibleFile string   `mapstructure:"possible_file"`
	RejectedFile string   `mapstructure:"rejected_file"`
	SearchName   string   `mapstructure:"search_name"`

	HostPrefix          string `mapstructure:"host_prefix"`
	ResultCountSelector string `mapstructure:"result_count_selector"`
	ResultCountPattern  string `mapstructure:"result_count_pattern"`
	LinkPattern         string `mapstructure:"link_pattern"`
	PageSize            int    `mapstructure:"page_size"`
	PossiblePolicy      string `mapstructure:"possible_policy"`

	HTTP            HTTP    `mapstructure:"http"`
	Storage         Storage `mapstructure:"storage"`
	MetricsTextfile string  `mapstructure:"metrics_textfile"`
}

var searchDefaults = map[string]any{
	"search_name":              "",
	"possible_file":            "",
	"rejected_file":            "",
	"host_prefix":              classify.DefaultHostPrefix,
	"result_count_selector":    listing.DefaultResultCountSelector,
	"result_count_pattern":     listing.DefaultResultCountPattern,
	"link_pattern":             listing.DefaultLinkPattern,
	"page_size":                listing.DefaultPageSize,
	"possible_policy":          string(classify.PolicyRecheck),
	"http.timeout":             30 * time.Second,
	"http.requests_per_second": 1.0,
	"http.jitter":              0.3,
	"http.tls_profile":         string(fingerprint.ProfileGo),
	"http.user_agents":         []string{},
	"http.respect_robots":      false,
	"http.max_body_bytes":      int64(10 << 20),
	"storage.backend":          BackendJSON,
	"storage.dsn":              "",
	"metrics_textfile":         "",
}

var searchRequired = []string{"url_template", "postcodes", "distances", "search_terms"}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// Load reads a search configuration file. The format follows the file
// extension (json, yaml, toml).
func Load(path string) (*Search, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	for k, d := range searchDefaults {
		v.SetDefault(k, d)
	}
	for _, k := range searchRequired {
		_ = v.BindEnv(k)
		if !v.IsSet(k) {
			return nil, fmt.Errorf("%s: %w %q", path, ErrMissingKey, k)
		}
	}

	var s Search
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// Validate checks values that viper cannot.
func (s *Search) Validate() error {
	if !strings.Contains(s.URLTemplate, "{page}") {
		return fmt.Errorf("url_template %q has no {page} placeholder", s.URLTemplate)
	}
	if len(s.Postcodes) == 0 {
		return fmt.Errorf("%w %q", ErrMissingKey, "postcodes")
	}
	if len(s.Distances) == 0 {
		return fmt.Errorf("%w %q", ErrMissingKey, "distances")
	}
	if len(s.SearchTerms) == 0 {
		return fmt.Errorf("%w %q", ErrMissingKey, "search_terms")
	}
	if s.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", s.PageSize)
	}
	if s.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", s.HTTP.Timeout)
	}
	if s.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must not be negative")
	}
	if _, err := classify.ParsePolicy(s.PossiblePolicy); err != nil {
		return err
	}
	if _, err := fingerprint.ParseProfile(s.HTTP.TLSProfile); err != nil {
		return fmt.Errorf("http.tls_profile: %w", err)
	}

	switch s.Storage.Backend {
	case BackendJSON, BackendCSV:
		if s.PossibleFile == "" {
			return fmt.Errorf("%w %q", ErrMissingKey, "possible_file")
		}
		if s.RejectedFile == "" {
			return fmt.Errorf("%w %q", ErrMissingKey, "rejected_file")
		}
	case BackendSQLite, BackendPostgres:
		if s.Storage.DSN == "" {
			return fmt.Errorf("%w %q", ErrMissingKey, "storage.dsn")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", s.Storage.Backend)
	}
	return nil
}

// Email holds SMTP delivery settings.
type Email struct {
	SMTPServer     string `mapstructure:"smtp_server"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUsername   string `mapstructure:"smtp_username"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	SMTPTLS        string `mapstructure:"smtp_tls"`
	EmailRecipient string `mapstructure:"email_recipient"`
	EmailSender    string `mapstructure:"email_sender"`
}

var emailKeys = []string{
	"smtp_server", "smtp_port", "smtp_username", "smtp_password",
	"smtp_tls", "email_recipient", "email_sender",
}

// LoadEmail reads the email configuration. With an empty path the settings
// come from the environment alone, and a nil Email is returned when
// RENTWATCH_SMTP_SERVER is unset there.
func LoadEmail(path string) (*Email, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("smtp_port", 587)
	for _, k := range emailKeys {
		_ = v.BindEnv(k)
	}

	if path == "" && !v.IsSet("smtp_server") {
		return nil, nil
	}

	for _, k := range []string{"smtp_server", "email_recipient"} {
		if v.GetString(k) == "" {
			return nil, fmt.Errorf("email config: %w %q", ErrMissingKey, k)
		}
	}

	var e Email
	if err := v.Unmarshal(&e); err != nil {
		return nil, fmt.Errorf("decode email config: %w", err)
	}
	return &e, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
