package config

import "time"

// DefaultConfig returns the configuration used when no file overrides exist.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			Port:      8080,
			StaticDir: "./web",
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				Enabled:          true,
				IP:               "0.0.0.0",
				Port:             8000,
				Path:             "/ws",
				HandshakeTimeout: 10 * time.Second,
				IdleTimeout:      5 * time.Minute,
			},
		},
		Audio: AudioConfig{
			TransformSize:  2048,
			SampleInterval: 200 * time.Millisecond,
		},
		Storage: StorageConfig{
			SQLitePath: "data/voicenote.db",
			BlobDir:    "data/audio",
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:6379",
			Prefix:   "voicenote:",
			TrendTTL: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Enabled:  false,
			TokenTTL: 24 * time.Hour,
			Store: StoreConfig{
				Type:    "memory",
				Expiry:  24 * time.Hour,
				Cleanup: 10 * time.Minute,
			},
		},
	}
}
