package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings is the full runtime configuration, read from RADOPS_* variables.
type Settings struct {
	App        AppSettings
	DB         DBSettings
	Redis      RedisSettings
	JWT        JWTSettings
	Attendance AttendanceSettings
	Outbox     OutboxSettings
	Graph      GraphSettings
	NATS       NATSSettings
}

type AppSettings struct {
	Env            string   `envconfig:"RADOPS_APP_ENV" default:"development"`
	Port           string   `envconfig:"RADOPS_APP_PORT" default:"8080"`
	LogLevel       string   `envconfig:"RADOPS_LOG_LEVEL" default:"info"`
	LogFile        string   `envconfig:"RADOPS_LOG_FILE" default:"./logs/app.log"`
	AllowedOrigins []string `envconfig:"RADOPS_ALLOWED_ORIGINS" default:"*"`
}

type DBSettings struct {
	Driver      string `envconfig:"RADOPS_DB_DRIVER" default:"postgres"`
	DSN         string `envconfig:"RADOPS_DB_DSN"`
	Host        string `envconfig:"RADOPS_DB_HOST" default:"localhost"`
	Port        string `envconfig:"RADOPS_DB_PORT" default:"5432"`
	User        string `envconfig:"RADOPS_DB_USER" default:"postgres"`
	Password    string `envconfig:"RADOPS_DB_PASSWORD" default:"password"`
	Name        string `envconfig:"RADOPS_DB_NAME" default:"radhiant"`
	SSLMode     string `envconfig:"RADOPS_DB_SSLMODE" default:"disable"`
	TimeZone    string `envconfig:"RADOPS_DB_TIMEZONE" default:"UTC"`
	AutoMigrate bool   `envconfig:"RADOPS_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"RADOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RADOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RADOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
}

// PostgresDSN returns the configured DSN or builds one from the discrete fields.
func (d DBSettings) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

type RedisSettings struct {
	Addr     string `envconfig:"RADOPS_REDIS_ADDR"`
	Password string `envconfig:"RADOPS_REDIS_PASSWORD"`
	DB       int    `envconfig:"RADOPS_REDIS_DB" default:"0"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisSettings) Enabled() bool { return r.Addr != "" }

type JWTSettings struct {
	Secret string        `envconfig:"RADOPS_JWT_SECRET" default:"supersecret"`
	TTL    time.Duration `envconfig:"RADOPS_JWT_TTL" default:"12h"`
}

type AttendanceSettings struct {
	Trucks          []string `envconfig:"RADOPS_TRUCKS" default:"RAD-1,RAD-2,RAD-3,RAD-4,RAD-5,RAD-6,RAD-7"`
	TimeZone        string   `envconfig:"RADOPS_TIMEZONE" default:"Africa/Johannesburg"`
	CutoffHour      int      `envconfig:"RADOPS_AUTO_SIGNOUT_HOUR" default:"20"`
	RetentionMonths int      `envconfig:"RADOPS_RETENTION_MONTHS" default:"3"`
	SweepSchedule   string   `envconfig:"RADOPS_SWEEP_SCHEDULE" default:"0 5 20 * * *"`
	BcryptCost      int      `envconfig:"RADOPS_BCRYPT_COST" default:"10"`
}

// Location resolves the configured time zone, falling back to UTC.
func (a AttendanceSettings) Location() *time.Location {
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type OutboxSettings struct {
	Schedule    string `envconfig:"RADOPS_OUTBOX_SCHEDULE" default:"0 * * * * *"`
	BatchSize   int    `envconfig:"RADOPS_OUTBOX_BATCH_SIZE" default:"25"`
	MaxAttempts int    `envconfig:"RADOPS_OUTBOX_MAX_ATTEMPTS" default:"8"`
}

type GraphSettings struct {
	TenantID     string `envconfig:"RADOPS_MS_TENANT_ID"`
	ClientID     string `envconfig:"RADOPS_MS_CLIENT_ID"`
	ClientSecret string `envconfig:"RADOPS_MS_CLIENT_SECRET"`
	UserID       string `envconfig:"RADOPS_MS_USER_ID"`
	TimeZone     string `envconfig:"RADOPS_MS_TIMEZONE" default:"Africa/Johannesburg"`
}

// Enabled reports whether enough credentials are present to call Graph.
func (g GraphSettings) Enabled() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != "" && g.UserID != ""
}

type NATSSettings struct {
	URL           string `envconfig:"RADOPS_NATS_URL"`
	SubjectPrefix string `envconfig:"RADOPS_NATS_SUBJECT_PREFIX" default:"radops.notify"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Settings, error) {
	// missing .env is fine, env vars may come from the orchestrator
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if s.Attendance.CutoffHour < 0 || s.Attendance.CutoffHour > 23 {
		return nil, fmt.Errorf("RADOPS_AUTO_SIGNOUT_HOUR must be between 0 and 23, got %d", s.Attendance.CutoffHour)
	}
	if s.Attendance.RetentionMonths <= 0 {
		return nil, fmt.Errorf("RADOPS_RETENTION_MONTHS must be positive, got %d", s.Attendance.RetentionMonths)
	}
	return &s, nil
}
