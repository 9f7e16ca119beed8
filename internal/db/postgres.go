package db

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skilllink/skilllink-api/internal/models"
)

// Connect opens the primary Postgres DSN and falls back to the local one when
// the primary is empty or unreachable. When no server answers it still
// returns a handle for the first usable DSN along with the error: the pool
// dials lazily, so queries fail one by one until the database comes back.
func Connect(dsn, fallback string, log *zap.Logger) (*gorm.DB, error) {
	var (
		errs []error
		idle *gorm.DB
	)
	for _, d := range []string{dsn, fallback} {
		if d == "" {
			continue
		}
		gdb, err := open(d)
		if err != nil {
			log.Warn("postgres open failed", zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if err = ping(gdb); err == nil {
			return gdb, nil
		}
		log.Warn("postgres connect failed", zap.Error(err))
		errs = append(errs, err)
		if idle == nil {
			idle = gdb
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no database DSN configured")
	}
	return idle, errors.Join(errs...)
}

func open(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

func ping(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models.All()...)
}
