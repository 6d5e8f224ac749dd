package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// {{ env.VARIABLE_NAME }}
	envVarPattern = regexp.MustCompile(`\{\{\s*env\.(\w+)\s*\}\}`)
)

// substituteEnvVars replaces {{ env.NAME }} placeholders. An unset variable is
// an error so a half-configured profile never reaches a driver.
func substituteEnvVars(value string) (string, error) {
	result := value
	seen := make(map[string]bool)

	for _, match := range envVarPattern.FindAllStringSubmatch(value, -1) {
		placeholder, name := match[0], match[1]
		if seen[placeholder] {
			continue
		}
		seen[placeholder] = true

		envValue, exists := os.LookupEnv(name)
		if !exists {
			return "", fmt.Errorf("environment variable '%s' not found", name)
		}
		result = strings.ReplaceAll(result, placeholder, envValue)
	}

	return result, nil
}

func substituteField(field string, target *string) error {
	if *target == "" {
		return nil
	}
	substituted, err := substituteEnvVars(*target)
	if err != nil {
		return fmt.Errorf("configuration error: failed to substitute environment variables in %s: %w", field, err)
	}
	*target = substituted
	return nil
}

func substituteEnvVarsInConfig(cfg *Config) error {
	fields := []struct {
		name   string
		target *string
	}{
		{"server.port", &cfg.Server.Port},
		{"cache.backend", &cfg.Cache.Backend},
		{"cache.redis.url", &cfg.Cache.Redis.URL},
		{"cache.redis.host", &cfg.Cache.Redis.Host},
		{"cache.redis.password", &cfg.Cache.Redis.Password},
		{"cache.redis.key_prefix", &cfg.Cache.Redis.KeyPrefix},
		{"log.level", &cfg.Log.Level},
		{"log.tags", &cfg.Log.Tags},
	}
	for _, f := range fields {
		if err := substituteField(f.name, f.target); err != nil {
			return err
		}
	}

	for i := range cfg.Server.CORSOrigins {
		if err := substituteField("server.cors_origins", &cfg.Server.CORSOrigins[i]); err != nil {
			return err
		}
	}

	for i := range cfg.Connections {
		p := &cfg.Connections[i]
		for _, f := range []struct {
			name   string
			target *string
		}{
			{"server", &p.Server},
			{"database", &p.Database},
			{"user", &p.User},
			{"password", &p.Password},
		} {
			if err := substituteField(fmt.Sprintf("%s for connection '%s'", f.name, p.Name), f.target); err != nil {
				return err
			}
		}
	}
	return nil
}
