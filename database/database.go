package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guardforce-cctv/be/config"
	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

// One active session per camera, enforced by the database as well as the
// registry.
const activeRecordingIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_recording_one_active
	ON cctv_recording_sessions (camera_id) WHERE status = 'recording'`

func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)
}

func Initialize(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := repository.EnsureDefaultAdmin(context.Background(), repository.NewGormUserRepository(db), logger); err != nil {
		logger.Warn("Failed to create default admin", zap.Error(err))
	}

	logger.Info("Database initialized successfully", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Camera{},
		&models.GeofenceZone{},
		&models.CCTVEvent{},
		&models.RecordingSession{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(activeRecordingIndex).Error; err != nil {
		return fmt.Errorf("failed to create recording index: %w", err)
	}
	return nil
}
