package cmd

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/akozyrev/hh-scout/internal/headhunter"
	"github.com/akozyrev/hh-scout/internal/ingest"
	"github.com/akozyrev/hh-scout/internal/ranking"
	"github.com/akozyrev/hh-scout/internal/ratelimit"
	"github.com/akozyrev/hh-scout/internal/secrets"
	"github.com/akozyrev/hh-scout/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app = "hh-scout"
)

type Config struct {
	HH        *HHConfig       `mapstructure:"hh"`
	Database  *DatabaseConfig `mapstructure:"database"`
	Server    *ServerConfig   `mapstructure:"server"`
	AI        *AIConfig       `mapstructure:"ai"`
	UserAgent string          `mapstructure:"user-agent"`
}

type HHConfig struct {
	ClientID         string `mapstructure:"client-id"`
	ClientIDFile     string `mapstructure:"client-id-file"`
	ClientSecret     string `mapstructure:"client-secret"`
	ClientSecretFile string `mapstructure:"client-secret-file"`
	RateLimit        int    `mapstructure:"rate-limit"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Listen      string `mapstructure:"listen"`
	SearchLimit int    `mapstructure:"search-limit"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-scout ingests resumes from hh.ru, stores them and ranks candidates for a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envBindings := map[string]string{
		"hh.client-id":      "HH_CLIENT_ID",
		"hh.client-secret":  "HH_CLIENT_SECRET",
		"database.url":      "DATABASE_URL",
		"ai.gemini.api-key": "GEMINI_API_KEY",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// We can't proceed if the config file parsed with error.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// The default config file is optional, everything can come from
	// environment variables and flags.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}

	return config, nil
}

func newHeadhunterClient(config *Config, logger *zap.Logger) (*headhunter.Client, error) {
	hhCfg := config.HH
	if hhCfg == nil {
		hhCfg = &HHConfig{}
	}

	clientID, err := secrets.Load(secrets.Source{
		Name:  "headhunter client id",
		Value: hhCfg.ClientID,
		File:  hhCfg.ClientIDFile,
		Env:   "HH_CLIENT_ID",
	})
	if err != nil {
		return nil, err
	}

	clientSecret, err := secrets.Load(secrets.Source{
		Name:  "headhunter client secret",
		Value: hhCfg.ClientSecret,
		File:  hhCfg.ClientSecretFile,
		Env:   "HH_CLIENT_SECRET",
	})
	if err != nil {
		return nil, err
	}

	hh := headhunter.New(logger, ratelimit.New(hhCfg.RateLimit), clientID, clientSecret)
	if config.UserAgent != "" {
		hh.UserAgent = config.UserAgent
	}

	return hh, nil
}

// newStore connects to postgres when a database url is configured and falls
// back to the in-memory store otherwise.
func newStore(ctx context.Context, config *Config, logger *zap.Logger) (store.Store, error) {
	url := ""
	if config.Database != nil {
		url = strings.TrimSpace(config.Database.URL)
	}

	if url == "" {
		logger.Warn("no database url configured, storing resumes in memory only")
		return store.NewMemory(), nil
	}

	return store.ConnectPostgres(ctx, url)
}

func newIngestor(config *Config, s store.Store, logger *zap.Logger) (*ingest.Ingestor, error) {
	hh, err := newHeadhunterClient(config, logger)
	if err != nil {
		return nil, err
	}

	return ingest.New(hh, s, logger), nil
}

// newRanker builds the gemini-backed ranker. A nil ranker with a nil error
// means ranking is disabled in the config.
func newRanker(ctx context.Context, config *Config, logger *zap.Logger) (*ranking.Ranker, error) {
	aiCfg := config.AI
	if aiCfg == nil || !aiCfg.Enabled {
		return nil, nil
	}

	geminiCfg := aiCfg.Gemini
	if geminiCfg == nil {
		geminiCfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: geminiCfg.APIKey,
		File:  geminiCfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	generator, err := ranking.NewGenerator(ctx, apiKey, geminiCfg.Model)
	if err != nil {
		return nil, err
	}

	rankerLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)

	return ranking.NewRanker(generator, rankerLogger, geminiCfg.MaxLogLength), nil
}
