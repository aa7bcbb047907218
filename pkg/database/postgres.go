package database

import (
	"fmt"
	"time"

	"fungiscan/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// Dialector picks the gorm driver. Postgres is the default.
func Dialector(config Config) (gorm.Dialector, error) {
	switch config.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			config.User, config.Password, config.Host, config.Port, config.DBName,
		)
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

func Connect(config Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(config)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if config.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connected", zap.String("driver", db.Dialector.Name()), zap.String("host", config.Host))
	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.TelemetryReading{},
		&models.DiagnosisRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		if err := createIndexes(db); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	log.Info("database migration completed")
	return nil
}

// createIndexes adds the descending indexes used by the newest-first reads.
func createIndexes(db *gorm.DB) error {
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_diagnosis_ts_desc ON diagnosis_records(timestamp DESC, id DESC)").Error; err != nil {
		return err
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_telemetry_ts_desc ON telemetry_readings(timestamp DESC, id DESC)").Error; err != nil {
		return err
	}
	return nil
}
