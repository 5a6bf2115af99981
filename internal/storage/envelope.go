package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CurrentVersion is the schema version written into every envelope.
const CurrentVersion = "1.0"

// Envelope wraps every stored value.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Version   string          `json:"version"`
}

// Migration upgrades the data of an envelope written at an older version to
// the CurrentVersion shape.
type Migration func(data json.RawMessage) (json.RawMessage, error)

func majorVersion(version string) (int, error) {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("invalid envelope version %q", version)
	}
	return n, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(data))
	return trimmed == "" || trimmed == "null"
}
