package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a string such as "9m" in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string like \"9m\": %s", data)
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	MaxConcurrent int    `json:"max_concurrent" yaml:"max_concurrent"`
	HTTP          struct {
		Listen         string   `json:"listen" yaml:"listen"`
		AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	} `json:"http" yaml:"http"`
	Hub struct {
		History int `json:"history" yaml:"history"`
	} `json:"hub" yaml:"hub"`
	Keepalive struct {
		Enabled  bool     `json:"enabled" yaml:"enabled"`
		Interval Duration `json:"interval" yaml:"interval"`
		Timeout  Duration `json:"timeout" yaml:"timeout"`
	} `json:"keepalive" yaml:"keepalive"`
	Jupyter struct {
		BaseURL string `json:"base_url" yaml:"base_url"`
		Token   string `json:"token" yaml:"token"`
	} `json:"jupyter" yaml:"jupyter"`
	Checkpoints struct {
		Max int `json:"max" yaml:"max"`
	} `json:"checkpoints" yaml:"checkpoints"`
}

// Defaults returns the configuration used for keys a file leaves out.
func Defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".nbbridge"),
		LogLevel:      "info",
		MaxConcurrent: 4,
	}
	cfg.HTTP.Listen = "127.0.0.1:8790"
	cfg.HTTP.AllowedOrigins = []string{}
	cfg.Hub.History = 1000
	cfg.Keepalive.Enabled = true
	cfg.Keepalive.Interval = Duration(9 * time.Minute)
	cfg.Keepalive.Timeout = Duration(30 * time.Second)
	cfg.Checkpoints.Max = 20
	return cfg
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the config at path over the defaults. A missing file is
// created with the defaults. JSON files may carry comments and trailing
// commas; .yaml and .yml files are read as YAML.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if listen := os.Getenv("NBBRIDGE_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if origins := os.Getenv("NBBRIDGE_ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = splitList(origins)
	}
	if baseURL := os.Getenv("JUPYTER_BASE_URL"); baseURL != "" {
		cfg.Jupyter.BaseURL = baseURL
	}
	if token := os.Getenv("JUPYTER_TOKEN"); token != "" {
		cfg.Jupyter.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.Keepalive.Enabled && c.Keepalive.Interval.Std() < time.Second {
		return fmt.Errorf("keepalive.interval must be at least 1s, got %s", c.Keepalive.Interval)
	}
	if c.Checkpoints.Max < 0 {
		return fmt.Errorf("checkpoints.max must not be negative, got %d", c.Checkpoints.Max)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decode(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(jsonc.ToJSON(data), v)
}

func encode(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes cfg to path atomically, in the format implied by its extension.
func Save(path string, cfg *Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its nested map form, as written to a JSON file.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns cfg as dot-separated keys, with secrets masked if mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := decode(path, data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// GetValue returns the value stored in the file at path under key.
func GetValue(path, key string) (any, error) {
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under key in the file at path. Values that parse
// as JSON (numbers, booleans, lists) are stored typed; anything else is
// stored as a string. Comments in the file are not preserved.
func SetValue(path, key, value string) error {
	m, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)
	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed
	data, err := encode(path, Unflatten(flat))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
