package quantum

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Group is one named TLS key-exchange group.
type Group struct {
	ID   uint16 `yaml:"id"`
	Name string `yaml:"name"`
}

// GroupTable is a versioned set of quantum-safe key-exchange groups.
// A GroupTable is immutable once built.
type GroupTable struct {
	version string
	groups  map[uint16]string
}

// groupTableFile is the YAML layout read by LoadGroupTable.
type groupTableFile struct {
	Version string  `yaml:"version"`
	Groups  []Group `yaml:"groups"`
}

// NewGroupTable builds a table from a list of groups.
func NewGroupTable(version string, groups []Group) *GroupTable {
	t := &GroupTable{
		version: version,
		groups:  make(map[uint16]string, len(groups)),
	}
	for _, g := range groups {
		t.groups[g.ID] = g.Name
	}
	return t
}

// Version returns the table version label.
func (t *GroupTable) Version() string { return t.version }

// IsQuantumSafe reports whether id is listed in the table.
func (t *GroupTable) IsQuantumSafe(id uint16) bool {
	_, ok := t.groups[id]
	return ok
}

// Name returns the registered name of id.
func (t *GroupTable) Name(id uint16) (string, bool) {
	name, ok := t.groups[id]
	return name, ok
}

// Groups returns the table contents ordered by ID.
func (t *GroupTable) Groups() []Group {
	out := make([]Group, 0, len(t.groups))
	for id, name := range t.groups {
		out = append(out, Group{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultGroupTable returns the built-in table: the ML-KEM and hybrid
// ML-KEM groups from the IANA registry plus the Kyber draft code points
// still offered by older stacks.
func DefaultGroupTable() *GroupTable {
	return NewGroupTable("2025-06", []Group{
		{ID: 0x0200, Name: "MLKEM512"},
		{ID: 0x0201, Name: "MLKEM768"},
		{ID: 0x0202, Name: "MLKEM1024"},
		{ID: 0x11EB, Name: "SecP256r1MLKEM768"},
		{ID: 0x11EC, Name: "X25519MLKEM768"},
		{ID: 0x11ED, Name: "SecP384r1MLKEM1024"},
		{ID: 0x023A, Name: "kyber512"},
		{ID: 0x023C, Name: "kyber768"},
		{ID: 0x023D, Name: "kyber1024"},
		{ID: 0x6399, Name: "X25519Kyber768Draft00"},
		{ID: 0x639A, Name: "SecP256r1Kyber768Draft00"},
	})
}

// LoadGroupTable reads a YAML group table:
//
//	version: "2025-06"
//	groups:
//	  - id: 0x11EC
//	    name: X25519MLKEM768
func LoadGroupTable(path string) (*GroupTable, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read group table: %w", err)
	}

	var f groupTableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse group table: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, ErrEmptyGroupTable
	}
	return NewGroupTable(f.Version, f.Groups), nil
}

var (
	builtinTable = DefaultGroupTable()
	currentTable atomic.Pointer[GroupTable]
)

// CurrentGroupTable returns the process-wide table.
func CurrentGroupTable() *GroupTable {
	if t := currentTable.Load(); t != nil {
		return t
	}
	return builtinTable
}

// SetGroupTable replaces the process-wide table. Passing nil restores the
// built-in table.
func SetGroupTable(t *GroupTable) {
	currentTable.Store(t)
}
