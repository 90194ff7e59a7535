package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/souqly/marketd/internal/database"
	"github.com/souqly/marketd/internal/jobs"
	"github.com/souqly/marketd/internal/notifications"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

// Config represents the runtime configuration for the marketd worker.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Push       PushConfig       `mapstructure:"push"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string        `mapstructure:"driver"`
	Path     string        `mapstructure:"path"`
	DSN      string        `mapstructure:"dsn"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Postgres DBAuthConfig  `mapstructure:"postgres"`
	MySQL    DBAuthConfig  `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// SchedulerConfig sets the tick period and the shutdown grace.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// PushConfig holds the VAPID credential pair. Push is disabled unless both keys are set.
type PushConfig struct {
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
	Subject         string        `mapstructure:"subject"`
	Timeout         time.Duration `mapstructure:"timeout"`
	TTL             int           `mapstructure:"ttl"`
}

// JobsConfig exposes the job windows and thresholds.
type JobsConfig struct {
	EndingSoonHorizon  time.Duration `mapstructure:"ending_soon_horizon"`
	InterestWindow     time.Duration `mapstructure:"interest_window"`
	InterestMinUsers   int           `mapstructure:"interest_min_users"`
	MatchWindow        time.Duration `mapstructure:"match_window"`
	MatchSignalWindow  time.Duration `mapstructure:"match_signal_window"`
	MatchMinScore      int           `mapstructure:"match_min_score"`
	MatchMaxRecipients int           `mapstructure:"match_max_recipients"`
	PriceDropWindow    time.Duration `mapstructure:"price_drop_window"`
	PriceDropRatio     string        `mapstructure:"price_drop_ratio"`
	DedupWindow        time.Duration `mapstructure:"dedup_window"`
	Retention          time.Duration `mapstructure:"retention"`
}

// MonitoringConfig toggles the ops HTTP surface.
type MonitoringConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	JobMaxAge time.Duration `mapstructure:"job_max_age"`
}

// LoadConfig reads config.yaml from ./config and any extra paths, then applies MARKETD_* env
// overrides. A path that names a file is read directly.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			v.SetConfigFile(path)
			v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
			continue
		}
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("MARKETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.timeout", "10s")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.shutdown_grace", "30s")

	v.SetDefault("push.subject", "mailto:ops@marketd.local")
	v.SetDefault("push.timeout", "5s")
	v.SetDefault("push.ttl", 86400)

	v.SetDefault("jobs.ending_soon_horizon", "1h")
	v.SetDefault("jobs.interest_window", "24h")
	v.SetDefault("jobs.interest_min_users", 3)
	v.SetDefault("jobs.match_window", "5m")
	v.SetDefault("jobs.match_signal_window", "720h") // 30 days
	v.SetDefault("jobs.match_min_score", 8)
	v.SetDefault("jobs.match_max_recipients", 50)
	v.SetDefault("jobs.price_drop_window", "30m")
	v.SetDefault("jobs.price_drop_ratio", "0.95")
	v.SetDefault("jobs.dedup_window", "24h")
	v.SetDefault("jobs.retention", "1440h") // 60 days

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.address", ":9090")
	v.SetDefault("monitoring.job_max_age", "6h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// StoreReady reports whether the store endpoint and credential are configured. The returned
// error wraps ErrStoreNotConfigured and names what is missing.
func (c *Config) StoreReady() error {
	if c == nil {
		return apperrors.Configuration("config", apperrors.ErrStoreNotConfigured)
	}

	db := c.Database
	var missing []string
	switch normalizeDriver(db.Driver) {
	case "sqlite":
		if strings.TrimSpace(db.Path) == "" && strings.TrimSpace(db.DSN) == "" {
			missing = append(missing, "database.path")
		}
	case "postgres":
		missing = hostMissing("postgres", db.DSN, db.Postgres)
	case "mysql":
		missing = hostMissing("mysql", db.DSN, db.MySQL)
	default:
		return apperrors.Configuration("config", fmt.Errorf("%w: unsupported driver %q", apperrors.ErrStoreNotConfigured, db.Driver))
	}

	if len(missing) > 0 {
		return apperrors.Configuration("config", fmt.Errorf("%w: missing %s", apperrors.ErrStoreNotConfigured, strings.Join(missing, ", ")))
	}
	return nil
}

func hostMissing(driver, dsn string, auth DBAuthConfig) []string {
	if strings.TrimSpace(dsn) != "" {
		return nil
	}
	var missing []string
	if strings.TrimSpace(auth.Host) == "" {
		missing = append(missing, "database."+driver+".host")
	}
	if auth.Password == "" {
		missing = append(missing, "database."+driver+".password")
	}
	return missing
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mysql":
		return "mysql"
	default:
		return driver
	}
}

// DatabaseSettings converts the config into database.Config.
func (c *Config) DatabaseSettings() database.Config {
	db := c.Database
	cfg := database.Config{
		Driver:  normalizeDriver(db.Driver),
		Path:    db.Path,
		DSN:     db.DSN,
		Timeout: db.Timeout,
	}

	var auth DBAuthConfig
	switch cfg.Driver {
	case "postgres":
		auth = db.Postgres
	case "mysql":
		auth = db.MySQL
	default:
		return cfg
	}
	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
	cfg.Options = auth.Options
	return cfg
}

// JobSettings converts the config into jobs.Config. Unset or invalid values fall back to the
// job defaults.
func (c *Config) JobSettings() jobs.Config {
	j := c.Jobs
	cfg := jobs.Config{
		EndingSoonHorizon:  j.EndingSoonHorizon,
		InterestWindow:     j.InterestWindow,
		InterestMinUsers:   j.InterestMinUsers,
		MatchWindow:        j.MatchWindow,
		MatchSignalWindow:  j.MatchSignalWindow,
		MatchMinScore:      j.MatchMinScore,
		MatchMaxRecipients: j.MatchMaxRecipients,
		PriceDropWindow:    j.PriceDropWindow,
		DedupWindow:        j.DedupWindow,
		Retention:          j.Retention,
	}
	if ratio, err := decimal.NewFromString(strings.TrimSpace(j.PriceDropRatio)); err == nil {
		cfg.PriceDropRatio = ratio
	}
	return cfg
}

// PushSettings converts the config into the web push configuration.
func (c *Config) PushSettings() notifications.WebPushConfig {
	return notifications.WebPushConfig{
		PublicKey:  c.Push.VAPIDPublicKey,
		PrivateKey: c.Push.VAPIDPrivateKey,
		Subject:    c.Push.Subject,
		TTL:        c.Push.TTL,
		Timeout:    c.Push.Timeout,
	}
}
