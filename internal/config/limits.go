package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxNameLength is the maximum length for record names. Limited to 255
	// to fit in PostgreSQL VARCHAR(255) and provide reasonable UX (names
	// should be short and descriptive).
	MaxNameLength = 255

	// MaxBatchSize is the maximum number of record updates committed per
	// store batch. The backing stores enforce an operations-per-batch
	// limit (Firestore-style stores cap at 500); 400 leaves headroom.
	MaxBatchSize = 400

	// DefaultAutosaveDelay is how long an editor session waits after the
	// last edit before persisting the buffered content.
	DefaultAutosaveDelay = 1500 * time.Millisecond
)

// Limits are the runtime-tunable bounds. Zero values fall back to the
// package constants above.
type Limits struct {
	MaxNameLength int
	MaxBatchSize  int
	AutosaveDelay time.Duration
}

// limitsFile is the on-disk shape. The delay is a Go duration string
// ("2s", "750ms") because YAML has no native duration type.
type limitsFile struct {
	MaxNameLength int    `yaml:"max_name_length"`
	MaxBatchSize  int    `yaml:"max_batch_size"`
	AutosaveDelay string `yaml:"autosave_delay"`
}

// LoadLimits reads the optional limits override file. A missing file is not
// an error; a malformed one is reported on stderr and ignored so a bad
// override can never take the server down.
func LoadLimits(path string) Limits {
	limits := Limits{
		MaxNameLength: MaxNameLength,
		MaxBatchSize:  MaxBatchSize,
		AutosaveDelay: DefaultAutosaveDelay,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return limits
	}

	var override limitsFile
	if err := yaml.Unmarshal(data, &override); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring malformed limits file %s: %v\n", path, err)
		return limits
	}

	if override.MaxNameLength > 0 {
		limits.MaxNameLength = override.MaxNameLength
	}
	if override.MaxBatchSize > 0 {
		limits.MaxBatchSize = override.MaxBatchSize
	}
	if override.AutosaveDelay != "" {
		if d, err := time.ParseDuration(override.AutosaveDelay); err == nil && d > 0 {
			limits.AutosaveDelay = d
		} else {
			fmt.Fprintf(os.Stderr, "warning: ignoring bad autosave_delay in %s: %q\n", path, override.AutosaveDelay)
		}
	}

	return limits
}
