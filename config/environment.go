package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentStaging     = "staging"
	environmentProduction  = "production"
)

var environmentAliases = map[string]string{
	"dev":   environmentDevelopment,
	"local": environmentDevelopment,
	"stage": environmentStaging,
	"stg":   environmentStaging,
	"prod":  environmentProduction,
	"live":  environmentProduction,
}

func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath swaps the default config file for the current
// environment's one (config/config.production.yml). An explicitly chosen
// path other than the default is kept.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}
	envPath, ok := envPaths[getAppEnvironment()]
	if ok && (path == defaultPath || path == envPath) {
		return envPath
	}
	return path
}

// AppEnvironment returns the normalised APP_ENV value.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether env trades against live venues: testnet
// endpoints are refused and every enabled live exchange needs credentials.
func IsProductionLike(env string) bool {
	return env == environmentProduction || env == environmentStaging
}
