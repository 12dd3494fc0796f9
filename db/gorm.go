package db

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"genesis/config"
	"genesis/logger"
	"genesis/model"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB is the shared database handle used by the repositories.
var GormDB *gorm.DB

// MySQLDSN builds the MySQL data source name from the configuration.
func MySQLDSN(cfg *config.Config) string {
	c := mysqldriver.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.Local
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		return gormmysql.Open(MySQLDSN(cfg)), nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// ConnectGormDB opens the configured database and sets GormDB.
func ConnectGormDB(cfg *config.Config) error {
	d, err := dialector(cfg)
	if err != nil {
		return err
	}

	GormDB, err = gorm.Open(d, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.DBDriver == "mysql" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Info("database connected", logger.String("driver", d.Name()))
	return nil
}

// CloseGormDB closes the shared database handle.
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}

	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// AutoMigrate creates or updates the tables of every persisted model.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	if err := db.AutoMigrate(&model.Track{}, &model.ArtistInfo{}, &model.Setting{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	return nil
}
