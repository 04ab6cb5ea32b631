package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"
)

// AutoExtent tells the workbook adapter to detect the table size itself.
const AutoExtent = -1

type TableConfig struct {
	InputRow     int `yaml:"input_row" toml:"input_row"`
	InputColumn  int `yaml:"input_column" toml:"input_column"`
	OutputRow    int `yaml:"output_row" toml:"output_row"`
	OutputColumn int `yaml:"output_column" toml:"output_column"`
	Width        int `yaml:"width" toml:"width"`
	Height       int `yaml:"height" toml:"height"`
}

type ReportConfig struct {
	Good     string `yaml:"good" toml:"good"`
	Doubtful string `yaml:"doubtful" toml:"doubtful"`
	Bad      string `yaml:"bad" toml:"bad"`
}

type DBConfig struct {
	Connection  string `yaml:"connection" toml:"connection"`
	Database    string `yaml:"database" toml:"database"`
	Collections struct {
		Links   string `yaml:"links" toml:"links"`
		History string `yaml:"history" toml:"history"`
	} `yaml:"collections" toml:"collections"`
}

type LogicConfig struct {
	MaxConcurrentWorkers int     `yaml:"max_concurrent_workers" toml:"max_concurrent_workers"`
	TimeoutSec           int     `yaml:"timeout_sec" toml:"timeout_sec"`
	MaxRedirects         int     `yaml:"max_redirects" toml:"max_redirects"`
	MaxBodyBytes         int64   `yaml:"max_body_bytes" toml:"max_body_bytes"`
	UserAgent            string  `yaml:"user_agent" toml:"user_agent"`
	RatePerSecond        float64 `yaml:"rate_per_second" toml:"rate_per_second"`
	RespectRobots        bool    `yaml:"respect_robots" toml:"respect_robots"`
	BodyMode             string  `yaml:"body_mode" toml:"body_mode"`
	Backend              string  `yaml:"backend" toml:"backend"`
	InsecureSkipVerify   bool    `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

type CheckerConfig struct {
	Table         TableConfig  `yaml:"table" toml:"table"`
	ErrorPatterns []string     `yaml:"error_patterns" toml:"error_patterns"`
	OutputPrefix  string       `yaml:"output_prefix" toml:"output_prefix"`
	Report        ReportConfig `yaml:"report" toml:"report"`
	Logic         LogicConfig  `yaml:"logic" toml:"logic"`
	DB            DBConfig     `yaml:"db" toml:"db"`
	Log           LogConfig    `yaml:"log" toml:"log"`
	Server        ServerConfig `yaml:"server" toml:"server"`
}

const (
	BodyModeRaw     = "raw"
	BodyModeText    = "text"
	BodyModeArticle = "article"

	BackendNative = "native"
	BackendColly  = "colly"

	// RandomUserAgent rotates user agents on the colly backend.
	RandomUserAgent = "random"
)

func DefaultConfig() *CheckerConfig {
	cfg := &CheckerConfig{
		Table: TableConfig{
			InputRow:     1,
			InputColumn:  1,
			OutputRow:    1,
			OutputColumn: 2,
			Width:        1,
			Height:       AutoExtent,
		},
		ErrorPatterns: []string{},
		OutputPrefix:  "out_",
		Report: ReportConfig{
			Good:     "ОК",
			Doubtful: "Найдены совпадения по фразам: ",
			Bad:      "Ошибка. Код состояния: ",
		},
		Logic: LogicConfig{
			MaxConcurrentWorkers: 8,
			TimeoutSec:           30,
			MaxRedirects:         10,
			MaxBodyBytes:         10 << 20,
			UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			BodyMode:             BodyModeRaw,
			Backend:              BackendNative,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
	cfg.DB.Database = "link_checker"
	cfg.DB.Collections.Links = "links"
	cfg.DB.Collections.History = "history"
	return cfg
}

// LoadConfig reads a YAML or TOML file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (*CheckerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read config %s", path)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *CheckerConfig) Validate() error {
	t := c.Table
	if t.InputRow < 1 || t.InputColumn < 1 || t.OutputRow < 1 || t.OutputColumn < 1 {
		return eris.New("table rows and columns are 1-based and must be positive")
	}
	if t.Width == 0 || t.Width < AutoExtent {
		return eris.Errorf("table width must be positive or %d, got %d", AutoExtent, t.Width)
	}
	if t.Height == 0 || t.Height < AutoExtent {
		return eris.Errorf("table height must be positive or %d, got %d", AutoExtent, t.Height)
	}
	if c.Logic.MaxConcurrentWorkers < 1 {
		return eris.Errorf("max_concurrent_workers must be at least 1, got %d", c.Logic.MaxConcurrentWorkers)
	}
	if c.Logic.MaxRedirects < 0 {
		return eris.Errorf("max_redirects must not be negative, got %d", c.Logic.MaxRedirects)
	}
	if c.Logic.TimeoutSec < 0 || c.Logic.RatePerSecond < 0 || c.Logic.MaxBodyBytes < 0 {
		return eris.New("timeout_sec, rate_per_second and max_body_bytes must not be negative")
	}
	switch c.Logic.BodyMode {
	case BodyModeRaw, BodyModeText, BodyModeArticle:
	default:
		return eris.Errorf("unknown body_mode %q", c.Logic.BodyMode)
	}
	switch c.Logic.Backend {
	case BackendNative, BackendColly:
	default:
		return eris.Errorf("unknown backend %q", c.Logic.Backend)
	}
	if c.Logic.UserAgent == RandomUserAgent && c.Logic.Backend != BackendColly {
		return eris.New("user_agent \"random\" is only supported by the colly backend")
	}
	if c.ErrorPatterns == nil {
		c.ErrorPatterns = []string{}
	}
	return nil
}
