package config

import "os"

// LogLevel resolves ORANGE_LOG_LEVEL, defaulting to "info" for anything
// unrecognised.
func LogLevel() string {
	switch v := os.Getenv("ORANGE_LOG_LEVEL"); v {
	case "error", "warn", "info", "debug":
		return v
	default:
		return "info"
	}
}

// GHProxy resolves GH_PROXY, which the code-hosting adapter forwards as
// both HTTPS_PROXY and HTTP_PROXY to the gh binary.
func GHProxy() string {
	return os.Getenv("GH_PROXY")
}

// Home resolves $ORANGE_HOME, defaulting to ~/.orange.
func Home() (string, error) {
	if v := os.Getenv("ORANGE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home + "/.orange", nil
}
