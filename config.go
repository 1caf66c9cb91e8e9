package spanner

import (
	"errors"
	"fmt"
	"strings"
)

// Config identifies the target database and how to reach it.
type Config struct {
	Project  string
	Instance string
	Database string

	// Credentials is an optional path to a service account JSON key.
	Credentials string

	// Endpoint overrides the production endpoint, for emulators.
	Endpoint string
}

// ParseConfig parses a space separated key=value connection string, e.g.
// "project=my-project instance=my-instance database=my-db".
func ParseConfig(name string) (Config, error) {
	args := make(map[string]string)

	for _, pair := range strings.Split(name, " ") {
		kv := strings.Split(pair, "=")

		if len(kv) == 2 {
			args[kv[0]] = kv[1]
		}
	}

	config := Config{
		Project:     args["project"],
		Instance:    args["instance"],
		Database:    args["database"],
		Credentials: args["credentials"],
		Endpoint:    args["endpoint"],
	}

	// Validate required fields
	if config.Project == "" {
		return Config{}, errors.New("project is required")
	}

	if config.Instance == "" {
		return Config{}, errors.New("instance is required")
	}

	if config.Database == "" {
		return Config{}, errors.New("database is required")
	}

	return config, nil
}

// DatabaseName returns the fully qualified database resource name.
func (c Config) DatabaseName() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s",
		c.Project, c.Instance, c.Database)
}
