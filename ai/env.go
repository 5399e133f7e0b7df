package ai

import (
	"fmt"
	"os"
)

const (
	SiteURL = "https://aider.chat"
	AppName = "Aider"
)

// Environment holds the process environment written once at startup. The
// values identify the application to routing providers.
type Environment struct {
	SiteURL string
	AppName string
	Mode    string
}

func DefaultEnvironment() Environment {
	return Environment{
		SiteURL: SiteURL,
		AppName: AppName,
		Mode:    "PRODUCTION",
	}
}

// Vars returns the environment variables in the order Apply writes them.
func (e Environment) Vars() [][2]string {
	return [][2]string{
		{"OR_SITE_URL", e.SiteURL},
		{"OR_APP_NAME", e.AppName},
		{"LITELLM_MODE", e.Mode},
	}
}

// Apply writes the environment. It should run once, before any client is
// constructed.
func (e Environment) Apply() error {
	for _, kv := range e.Vars() {
		if err := os.Setenv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	return nil
}
