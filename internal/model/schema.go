package model

import (
	"fmt"
	"strings"
)

// SchemaVersion identifies the upstream subgraph schema generation.
type SchemaVersion int

const (
	// SchemaV1 has no reserves fields on swap/mint/burn entities.
	SchemaV1 SchemaVersion = iota + 1
	// SchemaV2 exposes reserves0/reserves1 on swap/mint/burn entities.
	SchemaV2
)

func (v SchemaVersion) String() string {
	switch v {
	case SchemaV1:
		return "v1"
	case SchemaV2:
		return "v2"
	default:
		return fmt.Sprintf("SchemaVersion(%d)", int(v))
	}
}

// HasReserves reports whether the schema carries the reserves extension.
func (v SchemaVersion) HasReserves() bool {
	return v == SchemaV2
}

// ParseSchemaVersion accepts "v1"/"v2" (case-insensitive).
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return SchemaV1, nil
	case "v2", "2":
		return SchemaV2, nil
	default:
		return 0, fmt.Errorf("unknown schema version %q", s)
	}
}
