package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"saa-quiz-service/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverJSONFile = "jsonfile"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"

	LoaderFile     = "file"
	LoaderPostgres = "postgres"

	// DefaultPath is where the CLI looks for the config file when neither
	// --config nor CONFIG_PATH is given.
	DefaultPath = "config/config.yaml"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Scoring domain.PointsPolicy `yaml:"scoring"`
	Quiz    struct {
		ChallengeSize       int    `yaml:"challenge_size"`
		BankTTL             string `yaml:"bank_ttl"`
		BankDir             string `yaml:"bank_dir"`
		Timezone            string `yaml:"timezone"`
		TopSuccessThreshold int    `yaml:"top_success_threshold"`
	} `yaml:"quiz"`
	Banks map[string]Bank `yaml:"banks"`
	Admin struct {
		// Password unlocks the /api/admin routes. Empty keeps them closed.
		Password string `yaml:"password"`
	} `yaml:"admin"`
}

// Bank is one entry of the bank catalogue; the map key is the bank id.
type Bank struct {
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
	Loader string `yaml:"loader"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Storage.Driver = DriverMemory
	cfg.Scoring = domain.DefaultPointsPolicy()
	cfg.Quiz.ChallengeSize = 10
	cfg.Quiz.Timezone = "UTC"
	cfg.Quiz.TopSuccessThreshold = 2
	return cfg
}

// Load reads YAML config from path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverJSONFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for the %s driver", DriverJSONFile)
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required for the %s driver", DriverRedis)
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("config: postgres.url is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Quiz.ChallengeSize <= 0 {
		return fmt.Errorf("config: quiz.challenge_size must be positive, got %d", c.Quiz.ChallengeSize)
	}
	if c.Quiz.TopSuccessThreshold <= 0 {
		return fmt.Errorf("config: quiz.top_success_threshold must be positive, got %d", c.Quiz.TopSuccessThreshold)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("config: scoring: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for id, b := range c.Banks {
		if b.Source == "" {
			return fmt.Errorf("config: bank %q has no source", id)
		}
		switch b.Loader {
		case "", LoaderFile:
		case LoaderPostgres:
			if c.Postgres.URL == "" {
				return fmt.Errorf("config: bank %q needs postgres.url", id)
			}
		default:
			return fmt.Errorf("config: bank %q uses unknown loader %q", id, b.Loader)
		}
	}
	return nil
}

// Location resolves quiz.timezone, the calendar used for daily rows.
func (c Config) Location() (*time.Location, error) {
	if c.Quiz.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Quiz.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: quiz.timezone: %w", err)
	}
	return loc, nil
}

// BankIDs lists the configured bank ids in sorted order.
func (c Config) BankIDs() []string {
	ids := make([]string, 0, len(c.Banks))
	for id := range c.Banks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoaderName defaults to the file loader.
func (b Bank) LoaderName() string {
	if b.Loader == "" {
		return LoaderFile
	}
	return b.Loader
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
