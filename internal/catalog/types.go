// Package catalog generates the synthetic apartment-unit catalog for a building.
package catalog

import (
	"fmt"
	"strings"
)

// Kind identifies a building on the estate ("a", "b", ...).
type Kind string

const (
	KindA Kind = "a"
	KindB Kind = "b"
)

// ParseKind normalises a building kind from user input.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" || k == "all" {
		return "", fmt.Errorf("invalid building kind %q", s)
	}
	for _, r := range k {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invalid building kind %q", s)
		}
	}
	return k, nil
}

// Label returns the upper-cased form used in unit IDs.
func (k Kind) Label() string {
	return strings.ToUpper(string(k))
}

// Status is the sales status of a unit.
type Status int

const (
	Available Status = iota
	Reserved
	Sold
)

var statusNames = [...]string{"available", "reserved", "sold"}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Building holds the parameters a catalog is generated from.
type Building struct {
	Kind          Kind `json:"kind" yaml:"kind"`
	Floors        int  `json:"floors" yaml:"floors"`
	UnitsPerFloor int  `json:"unitsPerFloor" yaml:"unitsPerFloor"`
}

// Unit is one apartment record.
type Unit struct {
	ID       string  `json:"id" yaml:"id"`
	Building Kind    `json:"building" yaml:"building"`
	Floor    int     `json:"floor" yaml:"floor"`
	Column   int     `json:"column" yaml:"column"`
	Area     float64 `json:"area" yaml:"area"`
	Rooms    int     `json:"rooms" yaml:"rooms"`
	Status   Status  `json:"status" yaml:"status"`
}

// Available reports whether the unit can still be bought.
func (u Unit) Available() bool {
	return u.Status == Available
}

// Summary returns the public fields passed through hover and pick callbacks.
func (u Unit) Summary() UnitSummary {
	return UnitSummary{
		ID:     u.ID,
		Area:   u.Area,
		Rooms:  u.Rooms,
		Floor:  u.Floor,
		Status: u.Status,
	}
}

// UnitSummary is the fixed record handed to UI callbacks.
type UnitSummary struct {
	ID     string  `json:"id"`
	Area   float64 `json:"area"`
	Rooms  int     `json:"rooms"`
	Floor  int     `json:"floor"`
	Status Status  `json:"status"`
}

// UnitID formats the ID of the unit at (floor, column) of building k.
func UnitID(k Kind, floor, column int) string {
	return fmt.Sprintf("%s-%d-%d", k.Label(), floor, column)
}
