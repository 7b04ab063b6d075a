package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultConfigFile is read from the working directory when no --config is given.
	DefaultConfigFile = "cleaning.yaml"
	// EnvPrefix prefixes every environment override. Nested keys use a double
	// underscore: CLEANING_STORE__KIND sets store.kind.
	EnvPrefix = "CLEANING_"

	DefaultInputArtifact     = "sample"
	DefaultOutputArtifact    = "clean_sample"
	DefaultOutputType        = "csv"
	DefaultOutputDescription = "Preprocessed Input Datafile."
	DefaultMinPrice          = 10.0
	DefaultMaxPrice          = 350.0

	DefaultStoreRoot   = "./artifacts/blobs"
	DefaultCacheDir    = "./artifacts/cache"
	DefaultRegistryURL = "sqlite:./artifacts/registry.db"
	DefaultDuckDBTable = "listings"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultJobType     = "basic_cleaning"
)

// Config holds the job parameters and the settings of every collaborator.
type Config struct {
	InputArtifact     string   `koanf:"input_artifact"`
	OutputArtifact    string   `koanf:"output_artifact"`
	OutputType        string   `koanf:"output_type"`
	OutputDescription string   `koanf:"output_description"`
	MinPrice          *float64 `koanf:"min_price"`
	MaxPrice          *float64 `koanf:"max_price"`

	Store    StoreConfig    `koanf:"store"`
	Registry RegistryConfig `koanf:"registry"`
	Sinks    SinksConfig    `koanf:"sinks"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// StoreConfig selects the blob store backend and the local download cache.
type StoreConfig struct {
	Kind     string    `koanf:"kind"`
	Root     string    `koanf:"root"`
	CacheDir string    `koanf:"cache_dir"`
	S3       S3Config  `koanf:"s3"`
	GCS      GCSConfig `koanf:"gcs"`
}

// S3Config holds the s3 store settings. Static keys are optional.
type S3Config struct {
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	SessionToken string `koanf:"session_token"`
}

// GCSConfig holds the gcs store settings.
type GCSConfig struct {
	Bucket          string `koanf:"bucket"`
	Prefix          string `koanf:"prefix"`
	CredentialsFile string `koanf:"credentials_file"`
}

// RegistryConfig locates the artifact registry database, e.g. sqlite:./registry.db.
type RegistryConfig struct {
	URL string `koanf:"url"`
}

// SinksConfig names optional mirrors of the cleaned table. Empty values disable them.
type SinksConfig struct {
	PostgresDSN string `koanf:"postgres_dsn"`
	DuckDBPath  string `koanf:"duckdb_path"`
	DuckDBTable string `koanf:"duckdb_table"`
}

// LogConfig sets the log level and the text or json output format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the Pushgateway push after a run. An empty URL disables it.
type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url"`
	Job            string `koanf:"job"`
}

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"registry":   "registry.url",
	"store":      "store.kind",
}

func defaults() map[string]any {
	return map[string]any{
		"input_artifact":     DefaultInputArtifact,
		"output_artifact":    DefaultOutputArtifact,
		"output_type":        DefaultOutputType,
		"output_description": DefaultOutputDescription,
		"store.kind":         "local",
		"store.root":         DefaultStoreRoot,
		"store.cache_dir":    DefaultCacheDir,
		"registry.url":       DefaultRegistryURL,
		"sinks.duckdb_table": DefaultDuckDBTable,
		"log.level":          DefaultLogLevel,
		"log.format":         DefaultLogFormat,
		"metrics.job":        DefaultJobType,
	}
}

// Load builds the configuration. Precedence, highest first: explicitly set
// flags, environment (including .env), the YAML config file, defaults.
// Price bounds have no default and stay nil unless supplied.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// envKey turns CLEANING_STORE__CACHE_DIR into store.cache_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "local":
		if c.Store.Root == "" {
			return errors.New("store.root is required for the local store")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return errors.New("store.s3.bucket is required for the s3 store")
		}
	case "gcs":
		if c.Store.GCS.Bucket == "" {
			return errors.New("store.gcs.bucket is required for the gcs store")
		}
	default:
		return fmt.Errorf("store.kind %q is not one of local, s3, gcs", c.Store.Kind)
	}
	if c.Store.CacheDir == "" {
		return errors.New("store.cache_dir is required")
	}
	if c.Registry.URL == "" {
		return errors.New("registry.url is required")
	}
	return nil
}

// ValidateClean checks the parameters of the clean job. Every parameter is
// required; the price bounds must be given explicitly.
func (c *Config) ValidateClean() error {
	if err := c.Validate(); err != nil {
		return err
	}

	var missing []string
	for _, p := range []struct {
		key   string
		empty bool
	}{
		{"input_artifact", strings.TrimSpace(c.InputArtifact) == ""},
		{"output_artifact", strings.TrimSpace(c.OutputArtifact) == ""},
		{"output_type", strings.TrimSpace(c.OutputType) == ""},
		{"output_description", strings.TrimSpace(c.OutputDescription) == ""},
		{"min_price", c.MinPrice == nil},
		{"max_price", c.MaxPrice == nil},
	} {
		if p.empty {
			missing = append(missing, p.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	if strings.ContainsAny(c.OutputArtifact, "/:") {
		return fmt.Errorf("output_artifact %q must not contain '/' or ':'", c.OutputArtifact)
	}
	return nil
}

// RunParams returns the job parameters recorded with a run.
func (c *Config) RunParams() map[string]any {
	params := map[string]any{
		"input_artifact":     c.InputArtifact,
		"output_artifact":    c.OutputArtifact,
		"output_type":        c.OutputType,
		"output_description": c.OutputDescription,
	}
	if c.MinPrice != nil {
		params["min_price"] = *c.MinPrice
	}
	if c.MaxPrice != nil {
		params["max_price"] = *c.MaxPrice
	}
	return params
}
