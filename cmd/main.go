package main

import (
	"os"
	"strings"

	"link_checker/internal/app"
	"link_checker/internal/checker"
	"link_checker/internal/config"
	"link_checker/internal/db"
	"link_checker/internal/fetch"
	"link_checker/internal/parser"
	"link_checker/internal/server"
	"link_checker/internal/sheet"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "link_checker",
		Short:         "Checks the links found in spreadsheet tables and writes a report next to them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "config.yaml", "config file (.yaml or .toml)")
	flags.Int("workers", 0, "number of concurrent link checks")
	flags.String("backend", "", "http backend: native or colly")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	for _, name := range []string{"workers", "backend", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	viper.SetEnvPrefix("LINKCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(newCheckCommand(), newServeCommand(), newHistoryCommand())

	if err := root.Execute(); err != nil {
		logrus.Errorf("%+v", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag and LINKCHECK_* overrides.
// A missing default config file means built-in defaults.
func loadConfig(explicit bool) (*config.CheckerConfig, error) {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); explicit || err == nil {
		if cfg, err = config.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}

	if n := viper.GetInt("workers"); n > 0 {
		cfg.Logic.MaxConcurrentWorkers = n
	}
	if b := viper.GetString("backend"); b != "" {
		cfg.Logic.Backend = b
	}
	if l := viper.GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrapf(err, "bad log level %q", cfg.Level)
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// components are shared by every batch of one process.
type components struct {
	cfg     *config.CheckerConfig
	log     *logrus.Logger
	checker *checker.Checker
	storage *sheet.Workbook
	mongo   *db.MongoDB
}

func setup(cmd *cobra.Command) (*components, error) {
	cfg, err := loadConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(cfg.Logic, log)
	if err != nil {
		return nil, err
	}
	matcher, err := parser.NewMatcher(cfg.ErrorPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "bad error patterns")
	}

	c := &components{
		cfg:     cfg,
		log:     log,
		checker: checker.New(fetcher, matcher, cfg.Logic, log),
		storage: sheet.NewWorkbook(log),
	}

	if cfg.DB.Connection != "" {
		c.mongo, err = db.NewMongoDB(cfg.DB, log)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *components) newHandler(observer app.Observer) *app.Handler {
	h := app.NewHandler(c.cfg, c.storage, c.checker, observer, c.log)
	if c.mongo != nil {
		h.SetRecorder(c.mongo)
	}
	return h
}

// history returns nil when no database is configured.
func (c *components) history() server.HistoryReader {
	if c.mongo == nil {
		return nil
	}
	return c.mongo
}

func (c *components) close() {
	if c.mongo == nil {
		return
	}
	if err := c.mongo.Close(); err != nil {
		c.log.Warnf("can't close database: %v", err)
	}
}
