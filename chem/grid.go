package chem

import (
	"math"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Voxel grid defaults: a 16 Å cube at 1 Å resolution.
const (
	DefaultGridSize       = 16
	DefaultGridResolution = 1.0
	GridChannels          = 4 // C, N, O, other heavy atoms
)

func gridChannel(symbol string) int {
	switch symbol {
	case "C":
		return 0
	case "N":
		return 1
	case "O":
		return 2
	}
	return 3
}

// VoxelGrid counts heavy atoms per channel in a size³ grid centred on the
// heavy-atom centroid. The result is flattened channel-major:
// c*size³ + x*size² + y*size + z. Atoms outside the box are dropped.
func VoxelGrid(m *Molecule, size int, resolution float64) ([]float64, error) {
	if !m.HasCoords {
		return nil, errors.NewValueError("VoxelGrid", "molecule has no 3D coordinates")
	}
	if size < 1 || resolution <= 0 {
		return nil, errors.NewValidationError("grid", "size and resolution must be positive", size)
	}

	var centroid [3]float64
	heavy := 0
	for _, at := range m.Atoms {
		if at.Number > 1 {
			for k := range centroid {
				centroid[k] += at.Coords[k]
			}
			heavy++
		}
	}
	grid := make([]float64, GridChannels*size*size*size)
	if heavy == 0 {
		return grid, nil
	}
	for k := range centroid {
		centroid[k] /= float64(heavy)
	}

	half := float64(size) / 2
	for _, at := range m.Atoms {
		if at.Number <= 1 {
			continue
		}
		var idx [3]int
		inside := true
		for k := range idx {
			v := int(math.Floor((at.Coords[k]-centroid[k])/resolution + half))
			if v < 0 || v >= size {
				inside = false
				break
			}
			idx[k] = v
		}
		if !inside {
			continue
		}
		c := gridChannel(at.Symbol)
		grid[c*size*size*size+idx[0]*size*size+idx[1]*size+idx[2]]++
	}
	return grid, nil
}
