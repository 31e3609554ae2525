package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"page-audit/audit"
	"page-audit/browser"
	"page-audit/gather"
	"page-audit/report"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the run configuration.
type Config struct {
	Chrome      ChromeConfig `yaml:"chrome"`
	Passes      []PassConfig `yaml:"passes"`
	Checks      []string     `yaml:"checks"`
	Output      OutputConfig `yaml:"output"`
	Gist        GistConfig   `yaml:"gist,omitempty"`
	MetricsFile string       `yaml:"metrics_file,omitempty"`
	EvalTimeout string       `yaml:"eval_timeout,omitempty"` // e.g. "30s"
	UserAgent   string       `yaml:"user_agent,omitempty"`
}

// ChromeConfig locates or launches the browser.
type ChromeConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	ExecPath      string   `yaml:"exec_path,omitempty"`
	Headless      bool     `yaml:"headless"`
	Flags         []string `yaml:"flags,omitempty"` // name or name=value
	LaunchTimeout string   `yaml:"launch_timeout,omitempty"`
	UserDataDir   string   `yaml:"user_data_dir,omitempty"`
}

// PassConfig lists the collectors run in one pass.
type PassConfig struct {
	Name       string   `yaml:"name"`
	LoadPage   bool     `yaml:"load_page"`
	Offline    bool     `yaml:"offline,omitempty"`
	Collectors []string `yaml:"collectors"`
}

type OutputConfig struct {
	Formats    []string `yaml:"formats"`
	Dir        string   `yaml:"dir"`
	ArchiveDir string   `yaml:"archive_dir,omitempty"`
}

type GistConfig struct {
	TokenEnv string `yaml:"token_env,omitempty"` // defaults to GITHUB_TOKEN
	Public   bool   `yaml:"public,omitempty"`
}

// Default returns the built-in run: a loaded pass, a raw fetch pass and an
// offline pass feeding every built-in check.
func Default() *Config {
	return &Config{
		Chrome: ChromeConfig{
			Host:          "127.0.0.1",
			Port:          9222,
			Headless:      true,
			LaunchTimeout: "30s",
		},
		Passes: []PassConfig{
			{
				Name:       "defaultPass",
				LoadPage:   true,
				Collectors: []string{"URL", "HTTPS", "Viewport", "ThemeColor", "Manifest", "ServiceWorker", "HTML", "Title"},
			},
			{
				Name:       "rawPass",
				Collectors: []string{"NoJSHTML", "ResponseHeaders", "HTTPRedirect"},
			},
			{
				Name:       "offlinePass",
				Offline:    true,
				Collectors: []string{"Offline"},
			},
		},
		Checks: []string{
			"is-on-https",
			"redirects-http",
			"x-frame-options",
			"viewport",
			"theme-color-meta",
			"manifest-exists",
			"manifest-short-name",
			"service-worker",
			"works-offline",
			"without-javascript",
			"document-title",
		},
		Output: OutputConfig{
			Formats: []string{"pretty"},
			Dir:     "reports",
		},
		EvalTimeout: "30s",
	}
}

// Load reads a YAML file over the defaults. Sections present in the file
// replace the default ones.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values, that every collector and check name is
// known, and that each check's artifacts are collected by some pass.
func (c *Config) Validate() error {
	if c.Chrome.Port <= 0 || c.Chrome.Port > 65535 {
		return fmt.Errorf("%w: chrome.port %d out of range", ErrInvalidConfig, c.Chrome.Port)
	}
	if _, err := parseDuration("chrome.launch_timeout", c.Chrome.LaunchTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("eval_timeout", c.EvalTimeout); err != nil {
		return err
	}
	if len(c.Passes) == 0 {
		return fmt.Errorf("%w: at least one pass is required", ErrInvalidConfig)
	}
	names := make(map[string]bool)
	for i, p := range c.Passes {
		if p.Name == "" {
			return fmt.Errorf("%w: passes[%d].name is required", ErrInvalidConfig, i)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate pass name %q", ErrInvalidConfig, p.Name)
		}
		names[p.Name] = true
	}

	passes, err := gather.BuildPasses(c.PassSpecs(), gather.Options{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	checks, err := audit.Build(c.Checks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	collected := (&gather.Pipeline{Passes: passes}).Names()
	if err := audit.Validate(checks, collected); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	known := make(map[string]bool)
	for _, f := range report.Formats() {
		known[f] = true
	}
	for _, f := range c.Output.Formats {
		if !known[f] {
			return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, f)
		}
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, field)
	}
	return d, nil
}

// PassSpecs converts the passes for the collector registry.
func (c *Config) PassSpecs() []gather.PassSpec {
	specs := make([]gather.PassSpec, 0, len(c.Passes))
	for _, p := range c.Passes {
		specs = append(specs, gather.PassSpec{
			Name:       p.Name,
			LoadPage:   p.LoadPage,
			Offline:    p.Offline,
			Collectors: p.Collectors,
		})
	}
	return specs
}

// Browser converts the chrome section. Call after Validate.
func (c *Config) Browser() browser.Config {
	launch, _ := parseDuration("chrome.launch_timeout", c.Chrome.LaunchTimeout)
	eval, _ := parseDuration("eval_timeout", c.EvalTimeout)
	return browser.Config{
		Host:          c.Chrome.Host,
		Port:          c.Chrome.Port,
		ExecPath:      c.Chrome.ExecPath,
		Headless:      c.Chrome.Headless,
		UserDataDir:   c.Chrome.UserDataDir,
		UserAgent:     c.UserAgent,
		Flags:         c.Chrome.Flags,
		LaunchTimeout: launch,
		EvalTimeout:   eval,
	}
}

// CollectorOptions configures collectors that fetch outside the browser.
func (c *Config) CollectorOptions() gather.Options {
	eval, _ := parseDuration("eval_timeout", c.EvalTimeout)
	return gather.Options{UserAgent: c.UserAgent, Timeout: eval}
}

// GistToken reads the token from the configured environment variable.
func (c *Config) GistToken() string {
	env := c.Gist.TokenEnv
	if env == "" {
		env = "GITHUB_TOKEN"
	}
	return os.Getenv(env)
}
