package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// SourceConfig selects and parameterizes the contact backend.
type SourceConfig struct {
	// Mode is one of SourceModeGoogle, SourceModeCardDAV, SourceModeLocal.
	Mode string `yaml:"mode"`

	// URL is the CardDAV endpoint (carddav mode only).
	URL string `yaml:"url"`

	// Username for CardDAV basic auth.
	Username string `yaml:"username"`

	// Password for CardDAV basic auth. Prefer the CARDDAV_PASSWORD
	// environment variable over storing it here.
	Password string `yaml:"password"`

	// Path is the vCard file path (local mode only).
	Path string `yaml:"path"`
}

// Subentry is one user-configured calendar derived from a filtered view of
// the account's contacts. It is handed whole to the engine and immutable
// during a sync cycle.
type Subentry struct {
	// Name labels the generated calendar.
	Name string `yaml:"name"`

	// DisplayNamePreference is the ordered list of name-field identifiers
	// tried when resolving an event title. Must be non-empty after Normalize.
	DisplayNamePreference []string `yaml:"display_name_preference"`

	// Group restricts the calendar to contacts in the given group.
	// Empty means all contacts.
	Group string `yaml:"group"`

	// ShowYear includes the computed age/anniversary count in titles when the
	// contact's date carries a year.
	ShowYear bool `yaml:"show_year"`

	// DateKinds limits which date kinds are materialized.
	// Empty means all kinds present on the contact.
	DateKinds []string `yaml:"date_kinds"`

	// Refresh is a cron-style schedule ("@every 30m", "*/15 * * * *").
	Refresh string `yaml:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the ICS feed server.
	Listen string `yaml:"listen"`

	// HorizonDays is how far into the future the served feed extends.
	HorizonDays int `yaml:"horizon_days"`

	Source SourceConfig `yaml:"source"`

	Subentries []Subentry `yaml:"subentries"`
}

// DefaultConfig returns an in-memory default configuration with a single
// all-contacts birthday calendar.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		HorizonDays: DefaultHorizonDays,
		Source:      SourceConfig{Mode: SourceModeGoogle},
		Subentries: []Subentry{
			{
				Name:                  DefaultFeedName,
				DisplayNamePreference: append([]string(nil), DefaultNamePreference...),
				ShowYear:              true,
				Refresh:               DefaultRefresh,
			},
		},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.Source.Mode == "" {
		c.Source.Mode = SourceModeGoogle
	}
	for i := range c.Subentries {
		s := &c.Subentries[i]
		if s.DisplayNamePreference == nil {
			s.DisplayNamePreference = append([]string(nil), DefaultNamePreference...)
		}
		if s.Refresh == "" {
			s.Refresh = DefaultRefresh
		}
	}
}

// Validate rejects configurations the engine must never see. The coordinator
// assumes a validated config and does not re-check these mid-cycle.
func (c *Config) Validate() error {
	switch c.Source.Mode {
	case SourceModeGoogle:
	case SourceModeCardDAV:
		if c.Source.URL == "" {
			return errors.New(ErrSourceURLEmpty)
		}
	case SourceModeLocal:
		if c.Source.Path == "" {
			return errors.New(ErrSourcePathEmpty)
		}
	default:
		return fmt.Errorf("%s: %q", ErrSourceMode, c.Source.Mode)
	}

	for _, s := range c.Subentries {
		if s.Name == "" {
			return errors.New(ErrSubentryName)
		}
		if len(s.DisplayNamePreference) == 0 {
			return fmt.Errorf("%s: %q", ErrNamePrefEmpty, s.Name)
		}
		if _, err := cron.ParseStandard(s.Refresh); err != nil {
			return fmt.Errorf("%s: %q: %w", ErrRefreshSpec, s.Refresh, err)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600) and
// returned; otherwise the file is read, normalized, and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New(ErrConfigPathEmpty)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New(ErrConfigPathEmpty)
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermUserRWX); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".go-contactcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, FilePermUserRW); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
