package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the settings file is looked up when --config is not given.
const DefaultPath = "/etc/purgelogs.yml"

// Settings holds persistent CLI defaults loaded from a config file.
// Zero values mean "not set"; command-line flags fill them in.
type Settings struct {
	LogPathDir    string `yaml:"log_path_dir"`
	RetentionDays int    `yaml:"retention_days"`
	DryRun        bool   `yaml:"dry_run"`
	BuildSuccess  bool   `yaml:"build_success"` // protect the latest successful buildset per project

	// Daemon mode
	Loop     int    `yaml:"loop"`     // seconds between cycles
	Schedule string `yaml:"schedule"` // standard 5-field cron
	PIDFile  string `yaml:"pid_file,omitempty"`

	// Outputs
	ReportPath  string `yaml:"report,omitempty"`
	HistoryDB   string `yaml:"history_db,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &s, nil
}

// Validate rejects values no cycle could run with.
func (s *Settings) Validate() error {
	if s.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", s.RetentionDays)
	}
	if s.Loop < 0 {
		return fmt.Errorf("loop must not be negative, got %d", s.Loop)
	}
	if s.Loop > 0 && s.Schedule != "" {
		return errors.New("loop and schedule are mutually exclusive")
	}
	return nil
}
