package catchment

import (
	"log"

	"github.com/dbourene/consumerseek/internal/db"
)

// dataStore is everything the handlers read and write besides gorm models.
type dataStore interface {
	ConsumerStore
	DensityReader
	CentroidSource
}

// Package-level collaborators. Tests swap these for fakes; production wiring
// happens once in Init.
var (
	resolver RegionResolver = SpatialRegionResolver{}
	store    dataStore      = GormStore{}
	linkage  *LinkageService
)

func Init() {
	if err := db.DB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Fatal("Failed to enable uuid-ossp extension: ", err)
	}

	// communes is reference data owned by cmd/seed-communes, but migrating it
	// here keeps a fresh database usable before the first seed run.
	if err := db.DB.AutoMigrate(
		&Commune{},
		&Installation{},
		&Consommateur{},
	); err != nil {
		log.Fatal("Failed to auto-migrate tables: ", err)
	}

	linkage = &LinkageService{
		Resolver:  resolver,
		Store:     store,
		Densities: store,
	}
}
