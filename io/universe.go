package io

import (
	"fmt"

	"github.com/phil-mansfield/galaxy/model"
)

// BuildUniverse creates the universe described by wrap. Galaxies are added in
// the order given by GalaxyNames. If wrap has no [Galaxy] sections, the
// universe holds a single default galaxy.
func BuildUniverse(wrap *ConfigWrapper) (*model.Universe, error) {
	if len(wrap.Galaxy) == 0 {
		return model.DefaultUniverse(wrap.Simulation.UniverseSize)
	}

	u, err := model.NewUniverse(wrap.Simulation.UniverseSize)
	if err != nil { return nil, err }

	for _, name := range wrap.GalaxyNames() {
		g, err := BuildGalaxy(name, wrap.Galaxy[name])
		if err != nil { return nil, err }
		u.AddGalaxy(g)
	}
	return u, nil
}

// BuildGalaxy generates a galaxy, or reads it from its catalog if one is set.
// gal must have been initialized with CheckInit.
func BuildGalaxy(name string, gal *GalaxyConfig) (*model.Galaxy, error) {
	if gal.Catalog == "" {
		return model.NewGalaxy(name, gal.Params())
	}

	ps, err := ReadCatalog(gal.Catalog, gal)
	if err != nil { return nil, err }
	g, err := model.FromParticles(name, gal.Params(), ps)
	if err != nil {
		return nil, fmt.Errorf("Could not build Galaxy '%s': %w", name, err)
	}
	return g, nil
}
