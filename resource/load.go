package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EnvSecretPrefix and EnvSecretSuffix frame the per-resource secret override.
const (
	EnvSecretPrefix = "GATE_RESOURCE_"
	EnvSecretSuffix = "_SECRET"
)

// EnvSecretKey returns the environment variable that overrides id's secret.
func EnvSecretKey(id string) string {
	return EnvSecretPrefix + strings.ToUpper(strings.ReplaceAll(id, "-", "_")) + EnvSecretSuffix
}

// LoadFile reads a JSON array of resources from path, applies environment
// secret overrides and builds a registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read resources file: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes a JSON array of resources. lookupEnv may be nil to skip
// environment overrides.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (*Registry, error) {
	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("failed to parse resources: %w", err)
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("resources file defines no resources")
	}
	if lookupEnv != nil {
		for i := range resources {
			if v, ok := lookupEnv(EnvSecretKey(resources[i].ID)); ok && v != "" {
				resources[i].Secret = v
			}
		}
	}
	return NewRegistry(resources...)
}
