package model

import (
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/xjp-ai/xjp-gateway/common/config"
	"github.com/xjp-ai/xjp-gateway/common/logger"
)

var DB *gorm.DB

func chooseDB(dsn string) (*gorm.DB, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		logger.Logger.Info("using PostgreSQL as database")
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}), &gorm.Config{
			PrepareStmt: true,
		})
	case dsn != "":
		logger.Logger.Info("using MySQL as database")
		return gorm.Open(mysql.Open(dsn), &gorm.Config{
			PrepareStmt: true,
		})
	default:
		logger.Logger.Info("DATABASE_URL not set, using SQLite as database")
		return gorm.Open(sqlite.Open("xjp-gateway.db?_busy_timeout=3000"), &gorm.Config{
			PrepareStmt: true,
		})
	}
}

func migrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&ApiKey{}, &BillingTransaction{}, &UsageLog{}); err != nil {
		return errors.Wrap(err, "migrate database")
	}
	return nil
}

// InitDB opens the configured database and migrates the schema.
func InitDB() error {
	db, err := chooseDB(config.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get underlying sql.DB")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrateDB(db); err != nil {
		return err
	}
	DB = db
	return nil
}

// InitTestDB opens an isolated SQLite database for tests.
func InitTestDB(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return errors.Wrap(err, "open test database")
	}
	if err := migrateDB(db); err != nil {
		return err
	}
	DB = db
	return nil
}

func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return errors.Wrap(err, "get underlying sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}
	return nil
}
