package config

import (
	"errors"
	"os"
)

const (
	placeholderClientID     = "YOUR_CLIENT_ID"
	placeholderClientSecret = "YOUR_CLIENT_SECRET"
)

// ErrMissingCredentials is returned when no Strava credentials can be resolved
var ErrMissingCredentials = errors.New("strava credentials not configured - get them from https://www.strava.com/settings/api")

// Credentials are the Strava API application credentials
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialsProvider resolves Strava credentials
type CredentialsProvider interface {
	Credentials() (Credentials, error)
}

// EnvFileProvider reads STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET from the
// environment and falls back to the strava section of the config file.
type EnvFileProvider struct {
	Config *Config
	Getenv func(string) string
}

// NewEnvFileProvider returns a provider backed by os.Getenv and cfg
func NewEnvFileProvider(cfg *Config) *EnvFileProvider {
	return &EnvFileProvider{Config: cfg, Getenv: os.Getenv}
}

// Credentials implements CredentialsProvider
func (p *EnvFileProvider) Credentials() (Credentials, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	id, secret := getenv("STRAVA_CLIENT_ID"), getenv("STRAVA_CLIENT_SECRET")
	if id != "" && secret != "" {
		return Credentials{ClientID: id, ClientSecret: secret}, nil
	}

	if p.Config != nil {
		s := p.Config.Strava
		if usable(s.ClientID, placeholderClientID) && usable(s.ClientSecret, placeholderClientSecret) {
			return Credentials{ClientID: s.ClientID, ClientSecret: s.ClientSecret}, nil
		}
	}

	return Credentials{}, ErrMissingCredentials
}

func usable(value, placeholder string) bool {
	return value != "" && value != placeholder
}
