package preflight

import (
	"strings"

	"orbix/internal/config"
)

// CheckLLMFromConfig reports whether LLM credentials are present without
// calling the API.
func CheckLLMFromConfig(cfg *config.Config) Result {
	const name = "LLM"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key (classification and scripting idle)"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured (" + cfg.LLM.Model + ")"}
}

// CheckYouTubeFromConfig reports whether upload credentials are present.
func CheckYouTubeFromConfig(cfg *config.Config) Result {
	const name = "YouTube"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	var missing []string
	if cfg.YouTube.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cfg.YouTube.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if cfg.YouTube.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: "Missing " + strings.Join(missing, ", ") + " (publishing idle)"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}

// CheckRumbleFromConfig reports the secondary platform credentials. Rumble is
// optional; the runtime rumble_enabled setting decides whether it is used.
func CheckRumbleFromConfig(cfg *config.Config) Result {
	const name = "Rumble"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown", Optional: true}
	}
	if strings.TrimSpace(cfg.Rumble.AccessToken) == "" {
		return Result{Name: name, Detail: "Not configured", Optional: true}
	}
	return Result{Name: name, Passed: true, Detail: "Configured", Optional: true}
}
