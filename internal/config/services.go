package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceEndpoint locates an external collaborator reached over HTTP.
type ServiceEndpoint struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// Secret signs the service token presented to the collaborator.
	Secret string `yaml:"secret"`
	// Callback is the URL the VRF oracle posts seeds to; "{id}" is replaced
	// by the raffle id.
	Callback string `yaml:"callback"`
}

// ServicesConfig lists the collaborators of the raffle service: the VRF
// oracle that delivers randomness and the indexer answering account-state
// queries for gating and fee discounts.
type ServicesConfig struct {
	VRF      ServiceEndpoint `yaml:"vrf"`
	Accounts ServiceEndpoint `yaml:"accounts"`

	VRFURL         string `yaml:"-" env:"RAFFLE_VRF_URL"`
	VRFSecret      string `yaml:"-" env:"RAFFLE_VRF_SECRET"`
	AccountsURL    string `yaml:"-" env:"RAFFLE_ACCOUNTS_URL"`
	AccountsSecret string `yaml:"-" env:"RAFFLE_ACCOUNTS_SECRET"`
}

// LoadServicesConfigFromPath loads only the services section from a file
// shaped like config/services.yaml.
func LoadServicesConfigFromPath(path string) (ServicesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServicesConfig{}, fmt.Errorf("failed to read services config: %w", err)
	}

	cfg := DefaultServicesConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServicesConfig{}, fmt.Errorf("failed to parse services config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServicesConfig{}, err
	}
	return cfg, nil
}

// DefaultServicesConfig returns collaborators disabled with sane timeouts.
func DefaultServicesConfig() ServicesConfig {
	return ServicesConfig{
		VRF: ServiceEndpoint{
			Timeout: 10 * time.Second,
		},
		Accounts: ServiceEndpoint{
			Timeout: 5 * time.Second,
		},
	}
}

// Validate folds environment overrides into the endpoints and checks every
// enabled endpoint has an absolute URL.
func (s *ServicesConfig) Validate() error {
	if s.VRFURL != "" {
		s.VRF.URL, s.VRF.Enabled = s.VRFURL, true
	}
	if s.VRFSecret != "" {
		s.VRF.Secret = s.VRFSecret
	}
	if s.AccountsURL != "" {
		s.Accounts.URL, s.Accounts.Enabled = s.AccountsURL, true
	}
	if s.AccountsSecret != "" {
		s.Accounts.Secret = s.AccountsSecret
	}

	for name, ep := range map[string]ServiceEndpoint{"vrf": s.VRF, "accounts": s.Accounts} {
		if !ep.Enabled {
			continue
		}
		u, err := url.Parse(ep.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("service %s: url %q must be absolute", name, ep.URL)
		}
	}
	return nil
}
