package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	dbPath    string
	bindAddr  string
	modelPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "incident-triage",
	Short: "Criticality scoring and report pipeline for flagged telemetry",
	Long: `Incident-Triage ingests endpoint/network telemetry batches, classifies
incident rows, scores them across technical, contextual and IP-reputation
factors, and produces ranked analyst-facing reports.

Features:
- Schema-tolerant telemetry normalization (CSV, JSON, JSONL)
- Multi-factor criticality scoring with IP reputation enrichment
- Batch normalization, categorization and stable ranking
- SQLite-backed report history behind an HTTP API
- Drop-folder ingestion for file-based sensors`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.incident-triage.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/incident-triage.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&bindAddr, "listen", "127.0.0.1:8080", "HTTP API bind address")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Classifier model file (empty treats every row as a flagged incident)")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("server.bind", rootCmd.PersistentFlags().Lookup("listen"))
	viper.BindPFlag("classifier.model_path", rootCmd.PersistentFlags().Lookup("model"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".incident-triage" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".incident-triage")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("database.path", "./data/incident-triage.db")
	viper.SetDefault("server.bind", "127.0.0.1:8080")
	viper.SetDefault("server.token", "")
	viper.SetDefault("server.rps", 10)
	viper.SetDefault("server.burst", 20)
	viper.SetDefault("classifier.model_path", "")
	viper.SetDefault("reputation.base_url", "https://api.abuseipdb.com/api/v2")
	viper.SetDefault("reputation.api_key", "")
	viper.SetDefault("reputation.workers", 4)
	viper.SetDefault("reputation.timeout", 10*time.Second)
	viper.SetDefault("reputation.cache_ttl", time.Hour)
	viper.SetDefault("reputation.cache_size", 1000)
	viper.SetDefault("reputation.redis_url", "")
	viper.SetDefault("ingest.dir", "")
	viper.SetDefault("ingest.watch", true)
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Server: ServerConfig{
			Bind:  viper.GetString("server.bind"),
			Token: viper.GetString("server.token"),
			RPS:   viper.GetInt("server.rps"),
			Burst: viper.GetInt("server.burst"),
		},
		Classifier: ClassifierConfig{
			ModelPath: viper.GetString("classifier.model_path"),
		},
		Reputation: ReputationConfig{
			BaseURL:   viper.GetString("reputation.base_url"),
			APIKey:    viper.GetString("reputation.api_key"),
			Workers:   viper.GetInt("reputation.workers"),
			Timeout:   viper.GetDuration("reputation.timeout"),
			CacheTTL:  viper.GetDuration("reputation.cache_ttl"),
			CacheSize: viper.GetInt("reputation.cache_size"),
			RedisURL:  viper.GetString("reputation.redis_url"),
		},
		Ingest: IngestConfig{
			Dir:   viper.GetString("ingest.dir"),
			Watch: viper.GetBool("ingest.watch"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Bind  string `mapstructure:"bind"`
	Token string `mapstructure:"token"`
	RPS   int    `mapstructure:"rps"`
	Burst int    `mapstructure:"burst"`
}

type ClassifierConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

type ReputationConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Workers   int           `mapstructure:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	RedisURL  string        `mapstructure:"redis_url"`
}

type IngestConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}
