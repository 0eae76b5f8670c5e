// Package config provides functionality for managing configuration options
// for the scheduling service using command-line flags, a JSON config file
// and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`
	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`
	// Config is the path to the Config file.
	Config string `json:"-"`
	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`
	// KnowThreshold is the lowest quality counted as "recalled".
	KnowThreshold int `json:"know_threshold"`
	// ReviewRetention is how long review-log rows are kept.
	ReviewRetention Duration `json:"review_retention"`
	// CardsFile is a JSON file of decks loaded into the database at startup.
	CardsFile string `json:"cards_file"`
	// Timezone names the location whose midnight starts a study day.
	Timezone string `json:"timezone"`
	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
}

// Duration is a time.Duration that reads "720h"-style strings from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts either a Go duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	flag.StringVar(&options.LogLevel, "l", "info", "log level")
	flag.IntVar(&options.KnowThreshold, "know-threshold", 4, "lowest quality counted as recalled")
	flag.DurationVar(&options.ReviewRetention.Duration, "retention", 90*24*time.Hour, "review log retention")
	flag.StringVar(&options.CardsFile, "cards", "", "path to a JSON file of decks to load")
	flag.StringVar(&options.Timezone, "tz", "UTC", "timezone of the study day")
	flag.StringVar(&options.TLSCert, "tls-cert", "", "path to TLS certificate")
	flag.StringVar(&options.TLSKey, "tls-key", "", "path to TLS key")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if err := loadFile(options, options.Config); err != nil {
		log.Fatal(err)
	}
	applyEnv(options)

	return options
}

// loadFile overlays the JSON config file at path onto o. A missing file is not an error.
func loadFile(o *Options, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

// applyEnv overrides o with any environment variables that are set.
func applyEnv(o *Options) {
	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		o.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		o.DatabaseDSN = dsn
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		o.LogLevel = lvl
	}
	if tz := os.Getenv("STUDY_TZ"); tz != "" {
		o.Timezone = tz
	}
	if th := os.Getenv("KNOW_THRESHOLD"); th != "" {
		if v, err := strconv.Atoi(th); err == nil {
			o.KnowThreshold = v
		}
	}
}
