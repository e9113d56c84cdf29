package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Transport TransportConfig `yaml:"transport"`
	Audio     AudioConfig     `yaml:"audio"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
}

type WebSocketConfig struct {
	Enabled          bool          `yaml:"enabled"`
	IP               string        `yaml:"ip"`
	Port             int           `yaml:"port"`
	Path             string        `yaml:"path"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
}

// AudioConfig describes the client capture contract: the analyser transform
// size and the cadence at which analysis frames arrive.
type AudioConfig struct {
	TransformSize  int           `yaml:"transform_size"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	BlobDir    string `yaml:"blob_dir"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Username string        `yaml:"username,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TrendTTL time.Duration `yaml:"trend_ttl"`
}

type AuthConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	Store    StoreConfig   `yaml:"store"`
}

type StoreConfig struct {
	Type    string        `yaml:"type"`
	Expiry  time.Duration `yaml:"expiry"`
	Cleanup time.Duration `yaml:"cleanup"`
}
