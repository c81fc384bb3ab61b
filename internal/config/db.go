package config

import (
	"canvas-studio-backend/internal/models"
	"canvas-studio-backend/internal/repo"
	"database/sql"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// CacheDB is the sqlite file backing the local shape cache
var CacheDB *sql.DB

func ConnectDB(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DB_URL not set")
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pool settings
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("✅ Database connected successfully")
	return nil
}

func MigrateAllModels(run bool) error {
	if run {
		err := DB.AutoMigrate(
			// define all models here
			&models.Project{},
		)
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Println("✅ Database migration completed")
		return nil
	}
	log.Println("skipping migration")
	return nil
}

func CloseDB() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ConnectCache(path string) error {
	var err error
	CacheDB, err = repo.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	log.Println("✅ Cache database opened at", path)
	return nil
}

func CloseCache() error {
	if CacheDB == nil {
		return nil
	}
	return CacheDB.Close()
}
