package daemon

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// LoadConfig reads a yaml-encoded Config from path, overlaying it onto
// defaults. Grounded on internal/config/loader.go's LoadNodeConfig: read
// whole file, unmarshal into the typed struct, wrap decode errors.
func LoadConfig(path string, defaults Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("read config %s: %w", path, err))
	}
	cfg := defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("decode config %s: %w", path, err))
	}
	return cfg, nil
}
