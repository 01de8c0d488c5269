package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/config"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
)

// Connect opens the postgres connection described by cfg
func Connect(cfg *config.Config) (*gorm.DB, error) {
	if cfg.InstanceConnectionName != "" {
		log.Printf("Connecting to Cloud SQL via socket: %s", cfg.InstanceConnectionName)
	} else {
		log.Printf("Connecting to PostgreSQL at %s:%s", cfg.DBHost, cfg.DBPort)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Println("✅ Database connected successfully!")
	return db, nil
}

// Migrate creates or updates the tables
func Migrate(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")
	err := db.AutoMigrate(
		&models.Customer{},
		&models.Contact{},
		&models.Child{},
		&models.Receipt{},
		&models.Call{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Println("✅ Database migrations completed!")
	return nil
}
