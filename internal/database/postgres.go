package database

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// buildPostgresDSN renders a keyword/value DSN. Sessions run in UTC so the jobs' time
// windows compare against stored timestamps without conversion.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s",
		orDefault(cfg.Host, "localhost"), orDefault(cfg.Port, 5432), cfg.User, cfg.Name)
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}

	defaults := map[string]string{"sslmode": "disable", "TimeZone": "UTC"}
	if cfg.Timeout > 0 {
		defaults["connect_timeout"] = strconv.Itoa(int(cfg.Timeout.Seconds()))
	}
	return dsn + " " + cfg.driverOptions(defaults, " "), nil
}
