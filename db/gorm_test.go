package db

import (
	"testing"

	"genesis/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMySQLDSN(t *testing.T) {
	cfg := &config.Config{
		DBUser:     "player",
		DBPassword: "secret",
		DBHost:     "10.0.0.5",
		DBPort:     "3307",
		DBName:     "genesis",
	}

	dsn := MySQLDSN(cfg)
	assert.Contains(t, dsn, "player:secret@tcp(10.0.0.5:3307)/genesis")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestAutoMigrate(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(gdb))
	for _, table := range []string{"tracks", "artists", "settings"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}

	assert.Error(t, AutoMigrate(nil))
}
