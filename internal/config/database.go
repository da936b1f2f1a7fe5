package config

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"dealflow/internal/pkg/logger"
)

// DB is the global database instance
var DB *gorm.DB

// ConnectDatabase opens the MySQL connection pool, retrying with a growing
// delay while the server is not yet reachable.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Error)
	if cfg.IsDev() {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	delay := time.Second
	for attempt := 0; ; attempt++ {
		db, err = open(cfg.Database, gormLogger)
		if err == nil {
			break
		}
		if attempt >= cfg.Database.ConnectRetries {
			return nil, err
		}
		logger.Warn(context.Background(), "database not ready, retrying",
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err,
		)
		time.Sleep(delay)
		if delay < 16*time.Second {
			delay *= 2
		}
	}

	DB = db
	logger.Info(context.Background(), "database connected",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"db", cfg.Database.DBName,
	)
	return db, nil
}

func open(d DatabaseConfig, gormLogger gormlogger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(buildDSN(d)), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if d.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(d.MaxIdleConns)
	}
	if d.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(d.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// buildDSN returns the database connection string. loc=UTC keeps deadlines
// comparable with the service clock.
func buildDSN(d DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
	)
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database
func HealthCheck(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
