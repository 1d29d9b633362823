// Package catalog loads the static court roster from YAML and seeds it into
// the store. Seeding is idempotent: re-running updates names in place.
package catalog

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/openjustice/courtwatch/internal/model"
)

// Store is the persistence surface seeding needs.
type Store interface {
	UpsertRegion(ctx context.Context, name string) (int64, error)
	UpsertCourt(ctx context.Context, court model.Court) (bool, error)
}

// Court is one roster entry. Code is the regional site subdomain, or the
// aggregator path segment suffixed ".msk" for metropolitan courts.
type Court struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	IsMilitary bool   `yaml:"is_military"`
}

type Region struct {
	Name   string  `yaml:"name"`
	Courts []Court `yaml:"courts"`
}

type Catalog struct {
	Regions []Region `yaml:"regions"`
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	return &c, nil
}

// Seed writes the catalog into the store and reports how many courts were
// newly created.
func (c *Catalog) Seed(ctx context.Context, st Store) (int, error) {
	created := 0
	for _, region := range c.Regions {
		regionID, err := st.UpsertRegion(ctx, region.Name)
		if err != nil {
			return created, err
		}
		for _, court := range region.Courts {
			isNew, err := st.UpsertCourt(ctx, model.Court{
				RegionID:   regionID,
				Name:       court.Name,
				Code:       court.Code,
				IsMilitary: court.IsMilitary,
			})
			if err != nil {
				return created, err
			}
			if isNew {
				created++
			}
		}
	}
	return created, nil
}
