package vscode

import (
	"fmt"
	"regexp"
)

// LaunchSchemaVersion is the schema version written to launch.json.
const LaunchSchemaVersion = "0.2.0"

var extensionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.[a-zA-Z0-9][a-zA-Z0-9-]*$`)

// Configuration is one coherent set of editor configuration: workspace
// settings, extension recommendations and launch configurations.
type Configuration struct {
	Settings      map[string]any
	Extensions    []string
	LaunchConfigs []map[string]any
}

// FromTemplate builds a Configuration from the raw fragments a project
// template carries.
func FromTemplate(settings map[string]any, extensions []string, launchConfigs []map[string]any) Configuration {
	return Configuration{
		Settings:      settings,
		Extensions:    extensions,
		LaunchConfigs: launchConfigs,
	}
}

// Merge combines c with an incoming configuration, incoming values
// winning on settings conflicts. Neither receiver nor argument is
// mutated.
func (c Configuration) Merge(incoming Configuration) Configuration {
	return Configuration{
		Settings:      MergeSettings(c.Settings, incoming.Settings),
		Extensions:    MergeExtensions(c.Extensions, incoming.Extensions),
		LaunchConfigs: MergeLaunchConfigs(c.LaunchConfigs, incoming.LaunchConfigs),
	}
}

// IsEmpty reports whether the configuration carries nothing to write.
func (c Configuration) IsEmpty() bool {
	return len(c.Settings) == 0 && len(c.Extensions) == 0 && len(c.LaunchConfigs) == 0
}

// Validate checks that every extension recommendation is a well-formed
// "publisher.name" identifier.
func (c Configuration) Validate() error {
	for _, id := range c.Extensions {
		if !extensionIDPattern.MatchString(id) {
			return fmt.Errorf("invalid extension identifier %q", id)
		}
	}
	return nil
}

// ExtensionsPayload is the document shape of extensions.json.
func (c Configuration) ExtensionsPayload() map[string]any {
	return map[string]any{"recommendations": c.Extensions}
}

// LaunchPayload is the document shape of launch.json.
func (c Configuration) LaunchPayload() map[string]any {
	return map[string]any{
		"version":        LaunchSchemaVersion,
		"configurations": c.LaunchConfigs,
	}
}
