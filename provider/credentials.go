package provider

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/isdmx/cloudbox/config"
)

// Credentials carries the bearer token for remote API calls. It is derived
// per call and never cached.
type Credentials struct {
	Token string
}

// tokenSource yields a token, an empty string when the source has nothing,
// or an error when the source is present but unusable.
type tokenSource func() (string, error)

// tokenFilePayload is the on-disk token file format: a flat JSON object
// with a bearer_token field.
type tokenFilePayload struct {
	BearerToken string `json:"bearer_token"`
}

// ResolveCredentials produces credentials from the first non-empty source:
// the configured token, the CLOUDBOX_API_TOKEN environment variable, or a
// token file at the configured path (falling back to CLOUDBOX_TOKEN_FILE).
func ResolveCredentials(cfg *config.ComputeConfig) (Credentials, error) {
	sources := []tokenSource{
		func() (string, error) { return cfg.Token, nil },
		func() (string, error) { return os.Getenv(EnvToken), nil },
		func() (string, error) { return tokenFromFile(tokenFilePath(cfg)) },
	}

	for _, source := range sources {
		token, err := source()
		if err != nil {
			return Credentials{}, err
		}
		if token != "" {
			return Credentials{Token: token}, nil
		}
	}

	return Credentials{}, &ConfigError{
		Message: fmt.Sprintf("no API token found: set compute.token, %s, or a token file via compute.token_file or %s", EnvToken, EnvTokenFile),
	}
}

// tokenFilePath returns the configured token file path, or the
// environment-sourced equivalent when the config carries none.
func tokenFilePath(cfg *config.ComputeConfig) string {
	if cfg.TokenFile != "" {
		return cfg.TokenFile
	}
	return os.Getenv(EnvTokenFile)
}

// tokenFromFile loads a bearer token from the JSON token file at path. An
// empty path means the source is simply absent.
func tokenFromFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ConfigError{Message: fmt.Sprintf("failed to read token file %s: %v", path, err)}
	}

	var payload tokenFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &ConfigError{Message: fmt.Sprintf("failed to parse token file %s: %v", path, err)}
	}

	if payload.BearerToken == "" {
		return "", &ConfigError{Message: fmt.Sprintf("token file %s is missing the bearer_token field", path)}
	}

	return payload.BearerToken, nil
}
