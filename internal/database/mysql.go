package database

import (
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig())
}

// buildMySQLDSN renders a go-sql-driver DSN with UTC time parsing.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	credentials := cfg.User
	if cfg.Password != "" {
		credentials += ":" + cfg.Password
	}

	defaults := map[string]string{"charset": "utf8mb4", "parseTime": "True", "loc": "UTC"}
	if cfg.Timeout > 0 {
		defaults["timeout"] = cfg.Timeout.String()
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		credentials, orDefault(cfg.Host, "127.0.0.1"), orDefault(cfg.Port, 3306), cfg.Name,
		cfg.driverOptions(defaults, "&")), nil
}
