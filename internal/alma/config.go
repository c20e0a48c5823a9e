package alma

import (
	"almaconnector/internal/config"
	apperrors "almaconnector/pkg/errors"
)

// ServiceConfig selects the Alma protocol. It is either a RESTConfig or an
// SRUConfig; values are immutable once built.
type ServiceConfig interface {
	Protocol() Protocol
	isServiceConfig()
}

type RESTConfig struct {
	APIKey  string
	APIHost string
}

func (RESTConfig) Protocol() Protocol { return ProtocolREST }
func (RESTConfig) isServiceConfig()   {}

type SRUConfig struct {
	SearchKey       string
	Domain          string
	InstitutionCode string
}

func (SRUConfig) Protocol() Protocol { return ProtocolSRU }
func (SRUConfig) isServiceConfig()   {}

// Params is the untagged set of connection flags as given on the command
// line or in the configuration file.
type Params struct {
	APIKey          string
	APIHost         string
	SearchKey       string
	Domain          string
	InstitutionCode string
}

// ParamsFromConfig fills Params from the alma configuration section.
func ParamsFromConfig(cfg config.AlmaConfig) Params {
	return Params{
		APIKey:          cfg.API.Key,
		APIHost:         cfg.API.Host,
		SearchKey:       cfg.SRU.SearchKey,
		Domain:          cfg.SRU.Domain,
		InstitutionCode: cfg.SRU.InstitutionCode,
	}
}

// Merge returns p with every empty field taken from fallback.
func (p Params) Merge(fallback Params) Params {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Params{
		APIKey:          pick(p.APIKey, fallback.APIKey),
		APIHost:         pick(p.APIHost, fallback.APIHost),
		SearchKey:       pick(p.SearchKey, fallback.SearchKey),
		Domain:          pick(p.Domain, fallback.Domain),
		InstitutionCode: pick(p.InstitutionCode, fallback.InstitutionCode),
	}
}

// Config validates p. Complete REST credentials always win, even when SRU
// parameters are present too. SRU needs the search key and the domain;
// defaults for either are applied by the config loader, not here.
func (p Params) Config() (ServiceConfig, error) {
	if p.APIKey != "" && p.APIHost != "" {
		return RESTConfig{APIKey: p.APIKey, APIHost: p.APIHost}, nil
	}

	if p.SearchKey != "" && p.Domain != "" {
		if p.InstitutionCode == "" {
			return nil, apperrors.ErrConfiguration.
				WithMessage("sru configuration needs an institution code").
				WithDetail("domain", p.Domain)
		}
		return SRUConfig{SearchKey: p.SearchKey, Domain: p.Domain, InstitutionCode: p.InstitutionCode}, nil
	}
	if p.Domain != "" {
		return nil, apperrors.ErrConfiguration.
			WithMessage("sru configuration needs a search key").
			WithDetail("domain", p.Domain)
	}

	return nil, apperrors.ErrConfiguration.WithMessage("neither rest nor sru configuration given")
}

// RESTOnly validates p as a REST configuration, ignoring SRU parameters.
func (p Params) RESTOnly() (RESTConfig, error) {
	if p.APIKey == "" || p.APIHost == "" {
		return RESTConfig{}, apperrors.ErrConfiguration.WithMessage("alma rest api key and host are required")
	}
	return RESTConfig{APIKey: p.APIKey, APIHost: p.APIHost}, nil
}

// SRUOnly validates p as an SRU configuration, ignoring REST credentials.
func (p Params) SRUOnly() (SRUConfig, error) {
	cfg, err := Params{SearchKey: p.SearchKey, Domain: p.Domain, InstitutionCode: p.InstitutionCode}.Config()
	if err != nil {
		return SRUConfig{}, err
	}
	return cfg.(SRUConfig), nil
}
