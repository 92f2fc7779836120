package config

import "os"

type Config struct {
	Port        string
	DBDriver    string
	DBDSN       string
	AutoMigrate bool
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	driver := os.Getenv("TARIFFMATRIX_DB_DRIVER")
	if driver == "" {
		driver = "memory"
	}
	dsn := os.Getenv("TARIFFMATRIX_DB_DSN")
	if dsn == "" && (driver == "sqlite" || driver == "sqlite-flat") {
		dsn = "tariffmatrix.db"
	}
	auto := os.Getenv("TARIFFMATRIX_AUTO_MIGRATE")
	return Config{
		Port:        port,
		DBDriver:    driver,
		DBDSN:       dsn,
		AutoMigrate: auto == "1" || auto == "true" || auto == "yes",
	}
}
