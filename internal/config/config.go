package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Importer ImporterConfig `yaml:"importer"`
	Workers  WorkersConfig  `yaml:"workers"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version"`
	Env     string `yaml:"env" validate:"omitempty,oneof=development staging production test"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadMB     int64         `yaml:"max_upload_mb" validate:"gte=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host               string        `yaml:"host" validate:"required"`
	Port               int           `yaml:"port" validate:"required"`
	User               string        `yaml:"user" validate:"required"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name" validate:"required"`
	Charset            string        `yaml:"charset"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
}

type RedisConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host" validate:"required_if=Enabled true"`
	Port            int           `yaml:"port"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	PoolSize        int           `yaml:"pool_size"`
	ImportQueue     string        `yaml:"import_queue"`
	DLQSuffix       string        `yaml:"dlq_suffix"`
	LockKey         string        `yaml:"lock_key"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	SummaryKey      string        `yaml:"summary_key"`
	SummaryCacheTTL time.Duration `yaml:"summary_cache_ttl"`
}

type StorageConfig struct {
	S3             S3Config `yaml:"s3"`
	LocalDir       string   `yaml:"local_dir"`
	ArchiveImports bool     `yaml:"archive_imports"`
	ArchivePrefix  string   `yaml:"archive_prefix"`
	UploadPrefix   string   `yaml:"upload_prefix"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ImporterConfig describes the ledger workbook layout and the heuristics
// used to read it. Rows and columns are 1-based.
type ImporterConfig struct {
	WeightsRow         int               `yaml:"weights_row" validate:"gte=1"`
	SessionsRow        int               `yaml:"sessions_row" validate:"gte=1"`
	RolesRow           int               `yaml:"roles_row" validate:"gte=1"`
	FirstStudentRow    int               `yaml:"first_student_row" validate:"gte=1"`
	NameColumn         string            `yaml:"name_column" validate:"required,alpha"`
	ProximityWindow    int               `yaml:"proximity_window" validate:"gte=0"`
	SuspensionPhrase   string            `yaml:"suspension_phrase"`
	NonStudentPatterns []string          `yaml:"non_student_patterns"`
	CertificateColors  map[string]string `yaml:"certificate_colors"`
	Legend             LegendConfig      `yaml:"legend"`
}

type LegendConfig struct {
	Column   string `yaml:"column"`
	FirstRow int    `yaml:"first_row" validate:"gte=0"`
	LastRow  int    `yaml:"last_row" validate:"gte=0"`
}

type WorkersConfig struct {
	Import ImportWorkerConfig `yaml:"import"`
}

type ImportWorkerConfig struct {
	MetricsPort int `yaml:"metrics_port" validate:"gte=0,lte=65535"`
	// LockRetries is how often a job that meets a running import is put
	// back on the queue before its run is failed.
	LockRetries    int           `yaml:"lock_retries" validate:"gte=0"`
	LockRetryDelay time.Duration `yaml:"lock_retry_delay"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=json console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	return LoadFile(configPath)
}

func LoadFile(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"DB_HOST":        &c.Database.Host,
		"DB_USER":        &c.Database.User,
		"DB_PASSWORD":    &c.Database.Password,
		"DB_NAME":        &c.Database.Name,
		"REDIS_HOST":     &c.Redis.Host,
		"REDIS_PASSWORD": &c.Redis.Password,
		"S3_ACCESS_KEY":  &c.Storage.S3.AccessKey,
		"S3_SECRET_KEY":  &c.Storage.S3.SecretKey,
		"S3_BUCKET":      &c.Storage.S3.Bucket,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "school-ledger"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 20
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "Local"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.ImportQueue == "" {
		c.Redis.ImportQueue = "ledger:imports"
	}
	if c.Redis.DLQSuffix == "" {
		c.Redis.DLQSuffix = ":dlq"
	}
	if c.Redis.LockKey == "" {
		c.Redis.LockKey = "ledger:import-lock"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Minute
	}
	if c.Redis.SummaryKey == "" {
		c.Redis.SummaryKey = "ledger:summary"
	}
	if c.Redis.SummaryCacheTTL == 0 {
		c.Redis.SummaryCacheTTL = 5 * time.Minute
	}
	if c.Storage.ArchivePrefix == "" {
		c.Storage.ArchivePrefix = "archive"
	}
	if c.Storage.UploadPrefix == "" {
		c.Storage.UploadPrefix = "uploads"
	}

	if c.Workers.Import.LockRetries == 0 {
		c.Workers.Import.LockRetries = 10
	}
	if c.Workers.Import.LockRetryDelay == 0 {
		c.Workers.Import.LockRetryDelay = 30 * time.Second
	}

	imp := &c.Importer
	if imp.WeightsRow == 0 {
		imp.WeightsRow = 1
	}
	if imp.SessionsRow == 0 {
		imp.SessionsRow = 2
	}
	if imp.RolesRow == 0 {
		imp.RolesRow = 3
	}
	if imp.FirstStudentRow == 0 {
		imp.FirstStudentRow = 4
	}
	if imp.NameColumn == "" {
		imp.NameColumn = "B"
	}
	if imp.ProximityWindow == 0 {
		imp.ProximityWindow = 8
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=%s&multiStatements=true",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
