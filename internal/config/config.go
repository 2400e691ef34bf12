package config // package config loads application configuration from environment variables

import (
	"fmt"      // fmt formats fatal messages
	"log/slog" // slog reports configuration errors before halting
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"strings"  // strings normalizes enum-like values
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  MySQL connection fields are only required when
// DBDriver is "mysql"; the default driver is the local SQLite file at DBPath.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBDriver     string // "sqlite" (default) or "mysql"
	DBPath       string // sqlite database file
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign staff JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing
	LogLevel     string // debug | info | warn | error
	RabbitURL    string // AMQP broker URL; empty disables rental events
	RentalLogDir string // directory the rental event consumer writes to

	ManagerEmail    string // bootstrap manager account; empty disables it
	ManagerPassword string // password used when the bootstrap account is created
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:          must("APP_ENV"),                                // environment (dev/test/prod)
		Port:         must("APP_PORT"),                               // port to bind the HTTP server
		DBDriver:     strings.ToLower(envStr("DB_DRIVER", "sqlite")), // store backend
		DBPath:       envStr("DB_PATH", "rental.db"),                 // sqlite file
		DBPass:       os.Getenv("DB_PASS"),                           // database password (empty allowed)
		JWTSecret:    must("JWT_SECRET"),                             // secret used for signing JWTs
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),                // TTL for access tokens in minutes
		BcryptCost:   envInt("BCRYPT_COST", 10),                      // bcrypt cost factor
		LogLevel:     envStr("LOG_LEVEL", "info"),                    // log verbosity
		RabbitURL:    rabbitURL(),                                    // broker for rental events
		RentalLogDir: envStr("RENTAL_LOG_DIR", "logs"),               // consumer output directory
	}
	if cfg.ManagerEmail = os.Getenv("MANAGER_EMAIL"); cfg.ManagerEmail != "" {
		cfg.ManagerPassword = must("MANAGER_PASSWORD")
	}
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
	default:
		fatal("invalid DB_DRIVER %q (want sqlite or mysql)", cfg.DBDriver)
	}
	return cfg
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		fatal("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		fatal("invalid int for %s: %q", key, s)
	}
	return n
}

func fatal(format string, args ...any) {
	slog.Error("config: " + fmt.Sprintf(format, args...))
	os.Exit(1)
}
