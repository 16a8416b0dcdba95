// Package config loads segmentd configuration from a JSON file at
// $XDG_CONFIG_HOME/segmentd/config.json with SEGMENTD_* environment
// overrides.
package config

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8700,
		},
		LLM: LLMConfig{
			Model: "doubao-pro-32k",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the config file, then applies SEGMENTD_*
// environment overrides. A missing file is not an error; a missing LLM
// endpoint or API key is not an error either, the server falls back to the
// built-in mock model.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
