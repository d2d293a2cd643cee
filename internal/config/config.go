// Package config assembles the application configuration from defaults,
// a JSON config file, command line flags and environment variables.
// Priority is ENV > CLI > JSON file > defaults.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings of the application.
type Config struct {
	RunAddr                 string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	ShortURLBase            string        `env:"BASE_URL" json:"base_url" validate:"url"`
	LogLevel                string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName              string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"storagepath"`
	DatabaseDSN             string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout     time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	MigrationsDir           string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`
	SessionCookieName       string        `env:"SESSION_COOKIE_NAME" json:"session_cookie_name"`
	SessionSigningSecretKey string        `env:"SESSION_SIGNING_SECRET_KEY" json:"session_signing_secret_key"`
	SessionTTL              time.Duration `env:"SESSION_TTL" json:"session_ttl"`
	GRPCRunAddr             string        `env:"GRPC_SERVER_ADDRESS" json:"grpc_server_address" validate:"omitempty,hostname_port"`
	TrustedSubnet           string        `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	ConfigFileName          string        `env:"CONFIG" json:"-"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	ShortURLBase:        "http://localhost:8080",
	LogLevel:            "info",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/tinyapp/migrations",
	SessionCookieName:   "tinyapp_session",

	// base64url of a development-only signing key; override in production.
	SessionSigningSecretKey: "c2Vzc2lvbi1zaWduaW5nLWtleS1mb3ItZGV2ZWxvcG1lbnQ=",
	SessionTTL:              24 * time.Hour,
}

func validateStoragePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (values *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("storagepath", validateStoragePath)
	if err != nil {
		return err
	}

	return validate.Struct(values)
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func (values *Config) mergeNonEmpty(overrides Config) {
	if overrides.RunAddr != "" {
		values.RunAddr = overrides.RunAddr
	}
	if overrides.ShortURLBase != "" {
		values.ShortURLBase = overrides.ShortURLBase
	}
	if overrides.LogLevel != "" {
		values.LogLevel = overrides.LogLevel
	}
	if overrides.DBFileName != "" {
		values.DBFileName = overrides.DBFileName
	}
	if overrides.DatabaseDSN != "" {
		values.DatabaseDSN = overrides.DatabaseDSN
	}
	if overrides.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = overrides.DBConnectionTimeout
	}
	if overrides.MigrationsDir != "" {
		values.MigrationsDir = overrides.MigrationsDir
	}
	if overrides.SessionCookieName != "" {
		values.SessionCookieName = overrides.SessionCookieName
	}
	if overrides.SessionSigningSecretKey != "" {
		values.SessionSigningSecretKey = overrides.SessionSigningSecretKey
	}
	if overrides.SessionTTL != 0 {
		values.SessionTTL = overrides.SessionTTL
	}
	if overrides.GRPCRunAddr != "" {
		values.GRPCRunAddr = overrides.GRPCRunAddr
	}
	if overrides.TrustedSubnet != "" {
		values.TrustedSubnet = overrides.TrustedSubnet
	}
}

func (values *Config) applyJSONFile(fileName string) error {
	if fileName == "" {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	fromFile := Config{}
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return err
	}

	values.mergeNonEmpty(fromFile)

	return nil
}

// InitOption customizes the behavior of New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command line flags parsing.
// It is intended for tests, where the flag set is owned by the test binary.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds a validated Config from all configuration sources.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	valuesFromFlags := Config{}
	if !options.disableFlagsParsing {
		flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
		flags.StringVar(&valuesFromFlags.RunAddr, "a", "", "address and port to run server")
		flags.StringVar(&valuesFromFlags.ShortURLBase, "b", "", "base address of the resulting shortened URL")
		flags.StringVar(&valuesFromFlags.LogLevel, "l", "", "logger level")
		flags.StringVar(&valuesFromFlags.DBFileName, "f", "", "JSON file name with database")
		flags.StringVar(&valuesFromFlags.DatabaseDSN, "d", "", "a string with the database connection details")
		flags.StringVar(&valuesFromFlags.GRPCRunAddr, "g", "", "address and port to run the internal gRPC server")
		flags.StringVar(&valuesFromFlags.TrustedSubnet, "t", "", "CIDR of the subnet allowed to query internal stats")
		flags.StringVar(&valuesFromFlags.ConfigFileName, "c", "", "path to a JSON config file")
		if err := flags.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	valuesFromEnv := Config{}
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}

	configFileName := valuesFromFlags.ConfigFileName
	if valuesFromEnv.ConfigFileName != "" {
		configFileName = valuesFromEnv.ConfigFileName
	}
	if err := values.applyJSONFile(configFileName); err != nil {
		return nil, err
	}

	values.mergeNonEmpty(valuesFromFlags)
	values.mergeNonEmpty(valuesFromEnv)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
