package database

import (
	"testing"

	"gorm.io/gorm/logger"
)

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(Config{
		Driver:       "sqlite",
		DSN:          "file::memory:",
		MaxOpenConns: 1,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = Close(db) }()

	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("query error = %v", err)
	}
	if one != 1 {
		t.Errorf("SELECT 1 = %d", one)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	db, err := Connect(Config{Driver: "oracle", DSN: "x"})
	if err == nil {
		t.Fatal("Connect() should fail for unsupported driver")
	}
	if db != nil {
		t.Error("Connect() should return nil db on error")
	}
}
