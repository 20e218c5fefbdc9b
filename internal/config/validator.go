package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n%s", strings.Join(e.Errors, "\n"))
}

type validator struct {
	config   *Config
	errors   []string
	warnings []string
}

// Validate checks the configuration and reports all problems at once.
// Warnings are logged, not returned.
func (c *Config) Validate() error {
	v := &validator{config: c}
	v.validateBaseURL()
	v.validateTimings()
	v.validateRunner()
	v.validateBoard()
	v.validateUpload()

	for _, w := range v.warnings {
		logger.Printf("warning: %s", w)
	}
	if len(v.errors) > 0 {
		return &ValidationError{Errors: v.errors}
	}
	return nil
}

func (v *validator) validateBaseURL() {
	u, err := url.Parse(v.config.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.addError("base_url must be an absolute http(s) URL, got %q", v.config.BaseURL)
	}
}

func (v *validator) validateTimings() {
	c := v.config
	if c.Timeout <= 0 {
		v.addError("timeout must be positive")
	}
	if c.ResolveTimeout <= 0 {
		v.addError("resolve_timeout must be positive")
	} else if c.Timeout > 0 && c.ResolveTimeout > c.Timeout {
		v.addWarning("resolve_timeout %s exceeds timeout %s", c.ResolveTimeout, c.Timeout)
	}
	if c.SlowMo < 0 {
		v.addError("slow_mo must not be negative")
	}
	if c.SettleDelay < 0 {
		v.addError("settle_delay must not be negative")
	}
}

func (v *validator) validateRunner() {
	c := v.config
	switch strings.ToLower(c.Browser) {
	case "chromium", "firefox", "webkit":
	default:
		v.addError("browser must be chromium, firefox or webkit, got %q", c.Browser)
	}
	if c.Workers < 1 {
		v.addError("workers must be at least 1")
	}
	if c.Retries < 0 {
		v.addError("retries must not be negative")
	}
	switch c.Trace {
	case TraceOff, TraceOn, TraceOnFirstRetry, TraceRetainOnFailure:
	default:
		v.addError("trace must be one of off, on, on-first-retry, retain-on-failure, got %q", c.Trace)
	}
	if c.Trace == TraceOnFirstRetry && c.Retries == 0 {
		v.addWarning("trace is on-first-retry but retries is 0, no trace will be recorded")
	}
	if c.Report.OutputDir == "" {
		v.addError("report.output_dir is required")
	}
}

func (v *validator) validateBoard() {
	c := v.config
	if strings.TrimSpace(c.HomeSection) == "" {
		v.addError("home_section is required")
	}
	if strings.TrimSpace(c.FirstColumn) == "" {
		v.addError("first_column is required")
	}
	if strings.TrimSpace(c.TagSelector) == "" {
		v.addError("tag_selector is required")
	} else if _, err := cascadia.ParseGroup(c.TagSelector); err != nil {
		v.addError("tag_selector %q is not a valid CSS selector: %v", c.TagSelector, err)
	}
	if c.Credentials.Identifier == "" || c.Credentials.Password == "" {
		v.addError("credentials.identifier and credentials.password are required")
	}
}

func (v *validator) validateUpload() {
	u := v.config.Upload
	if !u.Enabled {
		return
	}
	if u.Bucket == "" {
		v.addError("upload.bucket is required when upload is enabled")
	}
	if (u.AccessKeyID == "") != (u.SecretAccessKey == "") {
		v.addError("upload.access_key_id and upload.secret_access_key must be set together")
	}
	if u.Endpoint != "" {
		if _, err := url.ParseRequestURI(u.Endpoint); err != nil {
			v.addError("upload.endpoint is not a valid URL: %v", err)
		}
	}
}

func (v *validator) addError(format string, args ...interface{}) {
	v.errors = append(v.errors, "❌ "+fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(format string, args ...interface{}) {
	v.warnings = append(v.warnings, "⚠️  "+fmt.Sprintf(format, args...))
}
