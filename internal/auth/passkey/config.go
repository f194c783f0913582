package passkey

import (
	"github.com/caarlos0/env/v11"
)

// Config controls WebAuthn relying party settings.
//
// RPOrigin is the single web origin ceremonies are accepted from; client
// data carrying any other origin is rejected outright.
type Config struct {
	RPDisplayName string `env:"GATEHOUSE_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"Gatehouse"`
	RPID          string `env:"GATEHOUSE_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigin      string `env:"GATEHOUSE_WEBAUTHN_RP_ORIGIN"       envDefault:"http://localhost:8080"`
}

// LoadConfigFromEnv returns relying party configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: "Gatehouse",
			RPID:          "localhost",
			RPOrigin:      "http://localhost:8080",
		}
	}
	return cfg
}
