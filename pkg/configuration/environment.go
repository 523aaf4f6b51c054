package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"controlplane"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type RedisOptions struct {
	Enabled bool   `env:"DIRECTORY_REDIS_ENABLED" envDefault:"false"`
	URL     string `env:"DIRECTORY_REDIS_URL" envDefault:"localhost:6379"`
}

type DirectoryOptions struct {
	CacheTTL         time.Duration `env:"DIRECTORY_CACHE_TTL" envDefault:"5m"`
	NegativeCacheTTL time.Duration `env:"DIRECTORY_NEGATIVE_CACHE_TTL" envDefault:"30s"`
}

type RouterOptions struct {
	MaxConnsPerTenant int32         `env:"ROUTER_MAX_CONNS_PER_TENANT" envDefault:"4"`
	AcquireTimeout    time.Duration `env:"ROUTER_ACQUIRE_TIMEOUT" envDefault:"10s"`
	RotationRetries   int           `env:"ROUTER_ROTATION_RETRIES" envDefault:"3"`
	// RotationTimeout bounds a single rotation attempt end to end, including
	// waits on a rotation already in flight.
	RotationTimeout time.Duration `env:"ROUTER_ROTATION_TIMEOUT" envDefault:"30s"`
	// RotationWindow is the scheduled credential rotation interval.
	RotationWindow time.Duration `env:"ROUTER_ROTATION_WINDOW" envDefault:"720h"`
}

// Validate checks the router configuration for errors.
func (r *RouterOptions) Validate() error {
	if r.MaxConnsPerTenant < 1 {
		return fmt.Errorf("router MaxConnsPerTenant must be at least 1, got %d", r.MaxConnsPerTenant)
	}
	if r.RotationRetries < 0 {
		return fmt.Errorf("router RotationRetries must be non-negative, got %d", r.RotationRetries)
	}
	return nil
}

type KMSOptions struct {
	// MasterKeyRef points at the secretbox master key, either ENV:NAME or
	// FILE:/abs/path. The key itself never appears in the environment struct.
	MasterKeyRef string `env:"KMS_MASTER_KEY_REF" envDefault:"ENV:CP_MASTER_KEY"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Redis      RedisOptions
	Directory  DirectoryOptions
	Router     RouterOptions
	KMS        KMSOptions
	Prometheus PrometheusOptions

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	RequestIDHeader  string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Router.Validate(); err != nil {
		return fmt.Errorf("router configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

func (c *Configuration) Unload() {
	if c.logFile != nil {
		_ = c.logFile.Close()
		c.logFile = nil
	}
}
