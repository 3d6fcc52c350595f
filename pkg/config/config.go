package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers soportados.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	HTTP     HTTPConfig
	Redis    RedisConfig
	Transfer TransferConfig
	Worker   WorkerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env         string // development, staging, production
	Name        string
	LogLevel    string
	StoreDriver string // postgres | memory
	SeedFile    string // catálogo JSON inicial; vacío = sin carga
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string con URL encoding para caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdempotencyTTL time.Duration
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig conexión para el almacén de idempotencia. Sin URL ni Address no se usa redis.
type RedisConfig struct {
	URL          string
	Address      string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Enabled indica si hay redis configurado.
func (c RedisConfig) Enabled() bool { return c.URL != "" || c.Address != "" }

// TransferConfig reintentos ante conflictos y compensación del alta.
type TransferConfig struct {
	RetryMax            uint64
	RetryBase           time.Duration
	CompensationRetries uint64
	LotsPageSize        int
}

// WorkerConfig periodicidad de los jobs de mantenimiento.
type WorkerConfig struct {
	SweepInterval time.Duration
	AuditInterval time.Duration
	AuditRepair   bool
	MetricsAddr   string // vacío = sin /metrics en el worker
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, TRANSFER_RETRY_MAX, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // opcional

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // opcional

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return FromViper(v)
}

// FromViper arma la configuración a partir de una instancia ya cargada.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:         v.GetString("APP_ENV"),
			Name:        v.GetString("APP_NAME"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
			SeedFile:    v.GetString("APP_SEED_FILE"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetInt("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: v.GetInt("JWT_EXPIRATION_MINUTES"),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			ReadTimeout:    v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("HTTP_WRITE_TIMEOUT"),
			IdempotencyTTL: v.GetDuration("HTTP_IDEMPOTENCY_TTL"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			Address:      v.GetString("REDIS_ADDRESS"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Transfer: TransferConfig{
			RetryMax:            v.GetUint64("TRANSFER_RETRY_MAX"),
			RetryBase:           time.Duration(v.GetInt("TRANSFER_RETRY_BASE_MS")) * time.Millisecond,
			CompensationRetries: v.GetUint64("TRANSFER_COMPENSATION_RETRIES"),
			LotsPageSize:        v.GetInt("LOTS_PAGE_SIZE"),
		},
		Worker: WorkerConfig{
			SweepInterval: v.GetDuration("WORKER_SWEEP_INTERVAL"),
			AuditInterval: v.GetDuration("WORKER_AUDIT_INTERVAL"),
			AuditRepair:   v.GetBool("WORKER_AUDIT_REPAIR"),
			MetricsAddr:   v.GetString("WORKER_METRICS_ADDR"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.App.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("config: STORE_DRIVER %q no soportado (postgres|memory)", c.App.StoreDriver)
	}
	if c.Transfer.RetryBase <= 0 {
		return fmt.Errorf("config: TRANSFER_RETRY_BASE_MS debe ser mayor que cero")
	}
	if c.Transfer.LotsPageSize <= 0 {
		return fmt.Errorf("config: LOTS_PAGE_SIZE debe ser mayor que cero")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "traslados-api")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("APP_SEED_FILE", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "traslados")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)

	v.SetDefault("JWT_EXPIRATION_MINUTES", 60)
	v.SetDefault("JWT_ISSUER", "traslados-api")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_IDEMPOTENCY_TTL", 24*time.Hour)

	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("TRANSFER_RETRY_MAX", 5)
	v.SetDefault("TRANSFER_RETRY_BASE_MS", 10)
	v.SetDefault("TRANSFER_COMPENSATION_RETRIES", 3)
	v.SetDefault("LOTS_PAGE_SIZE", 50)

	v.SetDefault("WORKER_SWEEP_INTERVAL", time.Minute)
	v.SetDefault("WORKER_AUDIT_INTERVAL", 15*time.Minute)
	v.SetDefault("WORKER_AUDIT_REPAIR", false)
	v.SetDefault("WORKER_METRICS_ADDR", ":9091")
}
