package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Compute ComputeConfig `mapstructure:"compute"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// ComputeConfig holds the remote compute API configuration
type ComputeConfig struct {
	Backend         string `mapstructure:"backend"`
	Token           string `mapstructure:"token"`
	TokenFile       string `mapstructure:"token_file"`
	BaseURL         string `mapstructure:"base_url"`
	VCPU            int    `mapstructure:"vcpu"`
	MemoryMB        int    `mapstructure:"memory_mb"`
	Architecture    string `mapstructure:"architecture"`
	OS              string `mapstructure:"os"`
	Image           string `mapstructure:"image"`
	Purpose         string `mapstructure:"purpose"`
	DestroyReason   string `mapstructure:"destroy_reason"`
	TargetContainer string `mapstructure:"target_container"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("compute.backend", "cloud")
	viper.SetDefault("compute.token", "")
	viper.SetDefault("compute.token_file", "")
	viper.SetDefault("compute.base_url", "https://compute.api.cloudbox.dev")
	viper.SetDefault("compute.vcpu", 2)
	viper.SetDefault("compute.memory_mb", 2048)
	viper.SetDefault("compute.architecture", "amd64")
	viper.SetDefault("compute.os", "linux")
	viper.SetDefault("compute.image", "ubuntu:latest")
	viper.SetDefault("compute.purpose", "cloudbox sandbox instance")
	viper.SetDefault("compute.destroy_reason", "sandbox destroyed by client")
	viper.SetDefault("compute.target_container", "main-container")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	if c.Compute.Backend != "cloud" {
		return fmt.Errorf("unsupported compute.backend: %s", c.Compute.Backend)
	}

	if c.Compute.BaseURL == "" {
		return fmt.Errorf("compute.base_url must not be empty")
	}

	if c.Compute.VCPU <= 0 {
		return fmt.Errorf("compute.vcpu must be positive, got: %d", c.Compute.VCPU)
	}

	if c.Compute.MemoryMB <= 0 {
		return fmt.Errorf("compute.memory_mb must be positive, got: %d", c.Compute.MemoryMB)
	}

	if c.Compute.TargetContainer == "" {
		return fmt.Errorf("compute.target_container must not be empty")
	}

	return nil
}
