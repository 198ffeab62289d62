package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/pkg/logging"
)

const Production = "production"

const (
	ClockInPolicyStartOnly  = "start_only"
	ClockInPolicyStartOrEnd = "start_or_end"

	WorkflowStoreMemory = "memory"
	WorkflowStoreRedis  = "redis"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory. When none of
// them exist there, the directory holding go.mod is tried, so tests and tools
// run from sub-packages still pick up the repo-level files.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := findModuleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			out = append(out, path)
		}
	}
	return out
}

func findModuleRoot() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", false
		}
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"mobsched"`
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

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"mobsched"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type SchedulingOptions struct {
	// Which job dates a clock-in may fall on. The two screens of the old UI
	// disagreed (start date only vs start or end date); start_only is the
	// stricter of the two and the default until product decides.
	ClockInPolicy string `env:"SCHEDULING_CLOCK_IN_POLICY" envDefault:"start_only"`

	// Also flag two candidates of one batch that collide with each other.
	CheckBatchOverlaps bool `env:"SCHEDULING_CHECK_BATCH_OVERLAPS" envDefault:"true"`

	SaveTimeout   time.Duration `env:"SCHEDULING_SAVE_TIMEOUT" envDefault:"30s"`
	WorkflowTTL   time.Duration `env:"SCHEDULING_WORKFLOW_TTL" envDefault:"30m"`
	WorkflowStore string        `env:"SCHEDULING_WORKFLOW_STORE" envDefault:"memory"`
}

func (s *SchedulingOptions) Validate() error {
	policy := strings.ToLower(strings.TrimSpace(s.ClockInPolicy))
	switch policy {
	case ClockInPolicyStartOnly, ClockInPolicyStartOrEnd:
	default:
		return fmt.Errorf("invalid SCHEDULING_CLOCK_IN_POLICY=%q (expected start_only|start_or_end)", s.ClockInPolicy)
	}
	s.ClockInPolicy = policy

	store := strings.ToLower(strings.TrimSpace(s.WorkflowStore))
	switch store {
	case WorkflowStoreMemory, WorkflowStoreRedis:
	default:
		return fmt.Errorf("invalid SCHEDULING_WORKFLOW_STORE=%q (expected memory|redis)", s.WorkflowStore)
	}
	s.WorkflowStore = store

	if s.SaveTimeout <= 0 {
		return fmt.Errorf("SCHEDULING_SAVE_TIMEOUT must be positive, got %s", s.SaveTimeout)
	}
	if s.WorkflowTTL <= 0 {
		return fmt.Errorf("SCHEDULING_WORKFLOW_TTL must be positive, got %s", s.WorkflowTTL)
	}
	return nil
}

// OutboxOptions switches scheduling events from direct publishing to the
// scheduling_outbox table and configures its relay and cleaner.
type OutboxOptions struct {
	Enabled bool `env:"OUTBOX_ENABLED" envDefault:"false"`

	RelayPollInterval    time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"1s"`
	RelayBatchSize       int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
	RelayLockTTL         time.Duration `env:"OUTBOX_RELAY_LOCK_TTL" envDefault:"60s"`
	RelayMaxAttempts     int           `env:"OUTBOX_RELAY_MAX_ATTEMPTS" envDefault:"25"`
	RelaySingleActive    bool          `env:"OUTBOX_RELAY_SINGLE_ACTIVE" envDefault:"true"`
	RelayDispatchTimeout time.Duration `env:"OUTBOX_RELAY_DISPATCH_TIMEOUT" envDefault:"30s"`
	LastErrorMaxBytes    int           `env:"OUTBOX_LAST_ERROR_MAX_BYTES" envDefault:"2048"`

	CleanerInterval      time.Duration `env:"OUTBOX_CLEANER_INTERVAL" envDefault:"1m"`
	CleanerRetention     time.Duration `env:"OUTBOX_CLEANER_RETENTION" envDefault:"168h"`
	CleanerDeadRetention time.Duration `env:"OUTBOX_CLEANER_DEAD_RETENTION" envDefault:"0"`
}

func (o *OutboxOptions) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.RelayPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_RELAY_POLL_INTERVAL must be positive, got %s", o.RelayPollInterval)
	}
	if o.RelayBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_RELAY_BATCH_SIZE must be positive, got %d", o.RelayBatchSize)
	}
	if o.RelayMaxAttempts <= 0 {
		return fmt.Errorf("OUTBOX_RELAY_MAX_ATTEMPTS must be positive, got %d", o.RelayMaxAttempts)
	}
	if o.CleanerRetention <= 0 {
		return fmt.Errorf("OUTBOX_CLEANER_RETENTION must be positive, got %s", o.CleanerRetention)
	}
	if o.CleanerDeadRetention < 0 {
		return fmt.Errorf("OUTBOX_CLEANER_DEAD_RETENTION must not be negative, got %s", o.CleanerDeadRetention)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Scheduling    SchedulingOptions
	Outbox        OutboxOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:""`
	DefaultTenantID  string `env:"DEFAULT_TENANT_ID" envDefault:""`
	// Requests carrying this header keep their id, others get a random uuidv4.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	TenantHeader    string `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`

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

// DefaultTenant returns the parsed DEFAULT_TENANT_ID or uuid.Nil.
func (c *Configuration) DefaultTenant() uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(c.DefaultTenantID))
	if err != nil {
		return uuid.Nil
	}
	return id
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
	return c.finalize()
}

func (c *Configuration) finalize() error {
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Scheduling.Validate(); err != nil {
		return fmt.Errorf("scheduling configuration error: %w", err)
	}
	if err := c.Outbox.Validate(); err != nil {
		return fmt.Errorf("outbox configuration error: %w", err)
	}
	if raw := strings.TrimSpace(c.DefaultTenantID); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return fmt.Errorf("invalid DEFAULT_TENANT_ID=%q: %w", raw, err)
		}
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

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
