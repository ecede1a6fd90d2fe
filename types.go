package mxs

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	MESH_MAGIC = "BINMESH"
	HAIR_MAGIC = "BINHAIR"
	PART_MAGIC = "BINPART"
	WIRE_MAGIC = "BINWIRE"
)

const (
	MESH_EXT = ".binmesh"
	HAIR_EXT = ".binhair"
	PART_EXT = ".binpart"
	WIRE_EXT = ".binwire"
)

// MESH_NAME_SIZE is the fixed width of the name field of a mesh container.
const MESH_NAME_SIZE = 250

// WIRE_RECORD_SIZE is the number of doubles stored per wire.
const WIRE_RECORD_SIZE = 33

// Kind identifies one of the binary container formats.
type Kind int

const (
	KindMesh Kind = iota
	KindHair
	KindParticles
	KindWire
)

var kinds = [...]struct {
	magic string
	ext   string
}{
	KindMesh:      {MESH_MAGIC, MESH_EXT},
	KindHair:      {HAIR_MAGIC, HAIR_EXT},
	KindParticles: {PART_MAGIC, PART_EXT},
	KindWire:      {WIRE_MAGIC, WIRE_EXT},
}

func (k Kind) Magic() string { return kinds[k].magic }

func (k Kind) Ext() string { return kinds[k].ext }

func (k Kind) String() string { return kinds[k].magic }

// Signature is the 64 bit value formed by the magic and the reserved byte
// when read as little endian. A writer stores it in its own byte order.
func (k Kind) Signature() uint64 {
	var b [8]byte
	copy(b[:7], k.Magic())
	return binary.LittleEndian.Uint64(b[:])
}

// ExportType is the classification of a scene node.
type ExportType int

const (
	OTHER ExportType = iota
	EMPTY
	MESH
	BASE_INSTANCE
	INSTANCE
	CAMERA
	SUN
	REFERENCE
	VOLUMETRICS
	PARTICLES
	HAIR
	SCATTER
	SUBDIVISION
	SEA
	CLONER
	GRASS
	WIREFRAME
)

var exportTypeNames = [...]string{
	OTHER:         "OTHER",
	EMPTY:         "EMPTY",
	MESH:          "MESH",
	BASE_INSTANCE: "BASE_INSTANCE",
	INSTANCE:      "INSTANCE",
	CAMERA:        "CAMERA",
	SUN:           "SUN",
	REFERENCE:     "REFERENCE",
	VOLUMETRICS:   "VOLUMETRICS",
	PARTICLES:     "PARTICLES",
	HAIR:          "HAIR",
	SCATTER:       "SCATTER",
	SUBDIVISION:   "SUBDIVISION",
	SEA:           "SEA",
	CLONER:        "CLONER",
	GRASS:         "GRASS",
	WIREFRAME:     "WIREFRAME",
}

func (t ExportType) String() string {
	if t < 0 || int(t) >= len(exportTypeNames) {
		return fmt.Sprintf("ExportType(%d)", int(t))
	}
	return exportTypeNames[t]
}

// ParseExportType returns the type whose tag equals s, ignoring case.
func ParseExportType(s string) (ExportType, error) {
	for i, n := range exportTypeNames {
		if strings.EqualFold(n, s) {
			return ExportType(i), nil
		}
	}
	return OTHER, fmt.Errorf("unknown export type %q", s)
}

func (t ExportType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ExportType) UnmarshalText(b []byte) error {
	v, err := ParseExportType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Appendable reports whether the type carries renderable content.
func (t ExportType) Appendable() bool {
	switch t {
	case MESH, BASE_INSTANCE, INSTANCE, REFERENCE, VOLUMETRICS:
		return true
	}
	return false
}

// Flat reports whether nodes of this type are exported without a parent.
func (t ExportType) Flat() bool {
	switch t {
	case CAMERA, SUN, SEA:
		return true
	}
	return false
}
