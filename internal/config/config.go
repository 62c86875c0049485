package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AlexKimmel/supportbot/internal/ratelimit"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`  // "debug","info","warn","error"
	LogFormat      string `yaml:"log_format"` // "json" or "console"
	PrometheusPath string `yaml:"prometheus_path"`
}

type Limits struct {
	Default struct {
		MaxRequests     int `yaml:"max_requests"`
		WindowMS        int `yaml:"window_ms"`
		BlockDurationMS int `yaml:"block_duration_ms"`
	} `yaml:"default"`
	SweepIntervalMS int `yaml:"sweep_interval_ms"` // 0 disables the janitor
	IdleMS          int `yaml:"idle_ms"`
}

type APIKey struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

type Bot struct {
	Admins          []string `yaml:"admins"` // identities that bypass admission
	SendURL         string   `yaml:"send_url"`
	SendToken       string   `yaml:"send_token"`
	SendTimeoutMS   int      `yaml:"send_timeout_ms"`
	SendRPS         float64  `yaml:"send_rps"`
	SendBurst       int      `yaml:"send_burst"`
	ChunkRunes      int      `yaml:"chunk_runes"`
	MaxMessageRunes int      `yaml:"max_message_runes"`
}

type Database struct {
	URL string `yaml:"url"` // empty keeps everything in memory
}

type Redis struct {
	Addr            string `yaml:"addr"` // empty disables Redis stats
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	Prefix          string `yaml:"prefix"`
	TTLMS           int    `yaml:"ttl_ms"`
	TrackIdentities bool   `yaml:"track_identities"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
	Bot           Bot           `yaml:"bot"`
	Database      Database      `yaml:"database"`
	Redis         Redis         `yaml:"redis"`
}

func ms(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func (s Server) ReadTimeout() time.Duration  { return ms(s.ReadTimeoutMS, 5*time.Second) }
func (s Server) WriteTimeout() time.Duration { return ms(s.WriteTimeoutMS, 10*time.Second) }
func (s Server) IdleTimeout() time.Duration  { return ms(s.IdleTimeoutMS, 60*time.Second) }

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 1 << 20
	}
	return s.MaxBodyBytes
} // default 1MB

func (l Limits) Policy() ratelimit.Policy {
	return ratelimit.PolicyFromMillis(l.Default.MaxRequests, l.Default.WindowMS, l.Default.BlockDurationMS)
}

func (l Limits) SweepInterval() time.Duration { return ms(l.SweepIntervalMS, 0) }
func (l Limits) Idle() time.Duration          { return ms(l.IdleMS, 30*time.Minute) }

func (b Bot) SendTimeout() time.Duration { return ms(b.SendTimeoutMS, 10*time.Second) }

func (r Redis) TTL() time.Duration { return ms(r.TTLMS, 24*time.Hour) }

// LoadEnvFiles loads .env.local then .env; missing files are fine and
// variables already set win.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, expanding ${VAR} references from the
// environment, and applies defaults.
func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Root, error) {
	var cfg Root
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Root) applyDefaults() {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	d := &cfg.Limits.Default
	if d.MaxRequests == 0 {
		d.MaxRequests = 20
	}
	if d.WindowMS == 0 {
		d.WindowMS = 60000
	}
	if d.BlockDurationMS == 0 {
		d.BlockDurationMS = 300000
	}
	if cfg.Bot.ChunkRunes == 0 {
		cfg.Bot.ChunkRunes = 4000
	}
	if cfg.Bot.MaxMessageRunes == 0 {
		cfg.Bot.MaxMessageRunes = 4096
	}
	if cfg.Bot.SendRPS == 0 {
		cfg.Bot.SendRPS = 25
	}
	if cfg.Bot.SendBurst == 0 {
		cfg.Bot.SendBurst = 5
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "supportbot:admission"
	}
}

// Validate rejects settings that would make the bot misbehave silently.
// Negative limits are not clamped.
func (cfg *Root) Validate() error {
	if err := cfg.Limits.Policy().Validate(); err != nil {
		return fmt.Errorf("limits.default: %w", err)
	}
	if cfg.Limits.SweepIntervalMS < 0 || cfg.Limits.IdleMS < 0 {
		return fmt.Errorf("limits: sweep_interval_ms and idle_ms must not be negative")
	}
	return nil
}
