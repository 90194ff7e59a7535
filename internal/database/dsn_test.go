package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "marketd",
		Name: "marketplace",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "host=localhost port=5432 user=marketd dbname=marketplace TimeZone=UTC sslmode=disable"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(
		dsn,
		"host=db.example.com",
		"port=6543",
		"user=user",
		"dbname=db",
		"password=pass",
		"sslmode=require",
		"search_path=public",
	) {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildPostgresDSNConnectTimeout(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "u", Name: "db", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	if !containsAll(dsn, "connect_timeout=10") {
		t.Fatalf("expected connect timeout in %q", dsn)
	}
}

func TestBuildDSNOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@db/market"})
	if err != nil || dsn != "postgres://u:p@db/market" {
		t.Fatalf("expected DSN override, got %q (%v)", dsn, err)
	}
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildPostgresDSN(Config{}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User: "marketd",
		Name: "marketplace",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "marketd@tcp(127.0.0.1:3306)/marketplace?charset=utf8mb4&loc=UTC&parseTime=True"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options: map[string]string{
			"tls": "skip-verify",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(
		dsn,
		"user:secret@tcp(db.example.com:3307)/db?",
		"charset=utf8mb4",
		"loc=UTC",
		"parseTime=True",
		"tls=skip-verify",
	) {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildMySQLDSN(Config{Host: "localhost"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestBuildSQLiteDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "market.db")
	dsn, err := buildSQLiteDSN(Config{Path: path, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "file:" + filepath.ToSlash(path) + "?_busy_timeout=2000&_foreign_keys=1&_journal_mode=WAL"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}

	for _, memory := range []string{"", ":memory:"} {
		if dsn, _ := buildSQLiteDSN(Config{Path: memory}); dsn != sqliteMemoryDSN {
			t.Fatalf("expected in-memory DSN for %q, got %q", memory, dsn)
		}
	}
}

func TestDriverOptionsOverrideDefaults(t *testing.T) {
	cfg := Config{Options: map[string]string{"sslmode": "require", " ": "ignored"}}
	got := cfg.driverOptions(map[string]string{"sslmode": "disable", "TimeZone": "UTC"}, " ")
	if got != "TimeZone=UTC sslmode=require" {
		t.Fatalf("unexpected options %q", got)
	}
}

func containsAll(value string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(value, part) {
			return false
		}
	}
	return true
}
