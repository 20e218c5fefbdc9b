package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the hosted board the checks run against.
const DefaultBaseURL = "https://animated-gingersnap-8cf7f2.netlify.app/"

// Trace capture policies.
const (
	TraceOff             = "off"
	TraceOn              = "on"
	TraceOnFirstRetry    = "on-first-retry"
	TraceRetainOnFailure = "retain-on-failure"
)

// Config represents the run configuration
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	Headless       bool          `mapstructure:"headless"`
	SlowMo         time.Duration `mapstructure:"slow_mo"`
	Browser        string        `mapstructure:"browser"`
	Workers        int           `mapstructure:"workers"`
	Retries        int           `mapstructure:"retries"`
	Trace          string        `mapstructure:"trace"`
	Screenshots    bool          `mapstructure:"screenshots"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	HomeSection    string        `mapstructure:"home_section"`
	FirstColumn    string        `mapstructure:"first_column"`
	TagSelector    string        `mapstructure:"tag_selector"`
	Scenarios      string        `mapstructure:"scenarios"`

	Credentials CredentialsConfig `mapstructure:"credentials"`
	Report      ReportConfig      `mapstructure:"report"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
}

type CredentialsConfig struct {
	Identifier string `mapstructure:"identifier"`
	Password   string `mapstructure:"password"`
}

type ReportConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	HTML        bool   `mapstructure:"html"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// UploadConfig points at S3-compatible storage for run artifacts.
type UploadConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type MonitorConfig struct {
	Schedule string `mapstructure:"schedule"`
}

var logger = log.New(os.Stderr, "[config] ", log.LstdFlags)

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("resolve_timeout", 5*time.Second)
	v.SetDefault("headless", false)
	v.SetDefault("slow_mo", time.Second)
	v.SetDefault("browser", "chromium")
	v.SetDefault("workers", 1)
	v.SetDefault("retries", 0)
	v.SetDefault("trace", TraceOnFirstRetry)
	v.SetDefault("screenshots", true)
	v.SetDefault("settle_delay", time.Duration(0))
	v.SetDefault("home_section", "Web Application")
	v.SetDefault("first_column", "To Do")
	v.SetDefault("tag_selector", "span")
	v.SetDefault("scenarios", "")

	v.SetDefault("credentials.identifier", "admin")
	v.SetDefault("credentials.password", "password123")

	v.SetDefault("report.output_dir", "playwright-report")
	v.SetDefault("report.html", true)
	v.SetDefault("report.metrics_file", "")

	v.SetDefault("upload.enabled", false)
	v.SetDefault("upload.bucket", "")
	v.SetDefault("upload.prefix", "boardcheck")
	v.SetDefault("upload.region", "us-east-1")
	v.SetDefault("upload.endpoint", "")
	v.SetDefault("upload.access_key_id", "")
	v.SetDefault("upload.secret_access_key", "")
	v.SetDefault("upload.use_path_style", false)

	v.SetDefault("monitor.schedule", "@every 15m")
}

// newViper builds a viper instance over defaults, the config file and the
// environment. An empty configFile looks for boardcheck.yaml in the working
// directory and tolerates its absence.
func newViper(configFile string) (*viper.Viper, error) {
	loadDotEnv(".env")

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("boardcheck")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("BOARDCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration once.
func Load(configFile string) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watcher keeps a configuration current while its file changes.
type Watcher struct {
	mu  sync.RWMutex
	cfg *Config
}

// Watch loads the configuration and reloads it on every change of the config
// file. onChange, when set, receives each successfully reloaded config; a
// reload that fails validation keeps the previous one.
func Watch(configFile string, onChange func(*Config)) (*Watcher, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	w := &Watcher{cfg: cfg}
	if v.ConfigFileUsed() == "" {
		return w, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Printf("config file changed: %s", e.Name)
		newCfg, err := decode(v)
		if err != nil {
			logger.Printf("failed to reload config: %v", err)
			return
		}
		w.mu.Lock()
		w.cfg = newCfg
		w.mu.Unlock()
		logger.Println("configuration reloaded")
		if onChange != nil {
			onChange(newCfg)
		}
	})
	v.WatchConfig()
	return w, nil
}

// Get returns the current configuration (thread-safe)
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}
