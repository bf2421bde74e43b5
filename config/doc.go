// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files. It supports configuration for server
// settings, logging, and the remote compute API (credentials, machine
// shape, and per-operation strings such as the instance purpose and the
// destroy reason).
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Compute base URL: %s\n", cfg.Compute.BaseURL)
package config
