package geometry

import (
	"github.com/golang/geo/r3"

	"github.com/joeblew999/plat-estate/internal/catalog"
)

// Box is the transform of one unit in the 3D scene.
type Box struct {
	UnitID   string    `json:"unitId"`
	Position r3.Vector `json:"position"` // centre, building-local
	Size     r3.Vector `json:"size"`
	// Anchor is the centre in scene coordinates (Position shifted by the
	// building OffsetX). Tooltips are projected from here.
	Anchor r3.Vector `json:"anchor"`
}

// Volumetric lays units out as boxes on the facade of a building.
type Volumetric struct {
	ColOffset    float64   `json:"colOffset" yaml:"colOffset"`
	UnitSpacing  float64   `json:"unitSpacing" yaml:"unitSpacing"`
	RowOffset    float64   `json:"rowOffset" yaml:"rowOffset"`
	FloorSpacing float64   `json:"floorSpacing" yaml:"floorSpacing"`
	Margin       float64   `json:"margin" yaml:"margin"`
	Depth        float64   `json:"depth" yaml:"depth"`
	StepBack     float64   `json:"stepBack" yaml:"stepBack"` // per floor, terraces
	BoxSize      r3.Vector `json:"boxSize" yaml:"boxSize"`
}

// DefaultVolumetric returns the showcase layout.
func DefaultVolumetric() Volumetric {
	return Volumetric{
		ColOffset:    0.8,
		UnitSpacing:  1.1,
		RowOffset:    0.55,
		FloorSpacing: 0.7,
		Margin:       0.6,
		Depth:        0.1,
		StepBack:     0.05,
		BoxSize:      r3.Vector{X: 0.9, Y: 0.5, Z: 0.25},
	}
}

// Width returns the facade width of s.
func (v Volumetric) Width(s Site) float64 {
	return float64(s.UnitsPerFloor)*v.UnitSpacing + v.Margin
}

// Height returns the facade height of s.
func (v Volumetric) Height(s Site) float64 {
	return float64(s.Floors)*v.FloorSpacing + v.Margin
}

// Project returns the box of u on site s.
func (v Volumetric) Project(u catalog.Unit, s Site) (Box, error) {
	if err := s.CheckPosition(u); err != nil {
		return Box{}, err
	}
	pos := r3.Vector{
		X: -v.Width(s)/2 + v.ColOffset + float64(u.Column-1)*v.UnitSpacing,
		Y: -v.Height(s)/2 + v.RowOffset + float64(u.Floor-1)*v.FloorSpacing,
		Z: v.Depth + float64(u.Floor-1)*v.StepBack,
	}
	return Box{
		UnitID:   u.ID,
		Position: pos,
		Size:     v.BoxSize,
		Anchor:   pos.Add(r3.Vector{X: s.OffsetX}),
	}, nil
}

// Boxes projects every unit of s found in units, skipping other buildings.
func (v Volumetric) Boxes(units []catalog.Unit, s Site) ([]Box, error) {
	out := make([]Box, 0, len(units))
	for _, u := range units {
		if u.Building != s.Kind {
			continue
		}
		b, err := v.Project(u, s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
