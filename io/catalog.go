package io

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/galaxy/model"
	"gonum.org/v1/gonum/spatial/r3"
)

// Column layout of an ASCII particle catalog.
const (
	xCol, yCol, zCol = 0, 1, 2
	vxCol, vyCol, vzCol = 3, 4, 5
	mCol = 6
)

// ReadCatalog reads the particles in an ASCII catalog with the columns
// x y z vx vy vz m. Positions and velocities are offset by those of the
// galaxy. Every particle is assigned to the disk population.
func ReadCatalog(file string, gal *GalaxyConfig) ([]model.Particle, error) {
	colIdxs := []int{ xCol, yCol, zCol, vxCol, vyCol, vzCol, mCol }
	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil {
		return nil, fmt.Errorf("Could not read catalog '%s': %w", file, err)
	}

	xs, ys, zs := cols[0], cols[1], cols[2]
	vxs, vys, vzs := cols[3], cols[4], cols[5]
	ms := cols[6]

	center := r3.Vec{ X: gal.X, Y: gal.Y, Z: gal.Z }
	bulk := r3.Vec{ X: gal.VX, Y: gal.VY, Z: gal.VZ }

	ps := make([]model.Particle, len(ms))
	for i := range ps {
		ps[i] = model.Particle{
			Position: r3.Add(center, r3.Vec{ X: xs[i], Y: ys[i], Z: zs[i] }),
			Velocity: r3.Add(bulk, r3.Vec{ X: vxs[i], Y: vys[i], Z: vzs[i] }),
			Mass: ms[i],
			Population: model.Disk,
		}
		if err := ps[i].Validate(); err != nil {
			return nil, fmt.Errorf(
				"Catalog '%s', line %d: %w", file, i + 1, err,
			)
		}
	}

	return ps, nil
}
