package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ehr/dedup/internal/domain/dedup"
	"github.com/ehr/dedup/internal/platform/similarity"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	HistoryPath string `mapstructure:"HISTORY_PATH"`
	AuthSecret  string `mapstructure:"AUTH_SECRET"`
	AuthIssuer  string `mapstructure:"AUTH_ISSUER"`
	BodyLimit   string `mapstructure:"BODY_LIMIT"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	GroupingFields     []string `mapstructure:"DEDUP_GROUPING_FIELDS"`
	SimilarityFields   []string `mapstructure:"DEDUP_SIMILARITY_FIELDS"`
	ThresholdFields    []string `mapstructure:"DEDUP_THRESHOLD_FIELDS"`
	Confidence         float64  `mapstructure:"DEDUP_CONFIDENCE"`
	Threshold          float64  `mapstructure:"DEDUP_THRESHOLD"`
	RemoveIDDuplicates bool     `mapstructure:"DEDUP_REMOVE_ID_DUPLICATES"`
	IDField            string   `mapstructure:"DEDUP_ID_FIELD"`
	Metric             string   `mapstructure:"DEDUP_METRIC"`
	Workers            int      `mapstructure:"DEDUP_WORKERS"`

	TestIDField      string `mapstructure:"TESTS_ID_FIELD"`
	TestOutcomeField string `mapstructure:"TESTS_OUTCOME_FIELD"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"HISTORY_PATH", "AUTH_SECRET", "AUTH_ISSUER", "BODY_LIMIT", "CORS_ORIGINS",
	"DEDUP_GROUPING_FIELDS", "DEDUP_SIMILARITY_FIELDS", "DEDUP_THRESHOLD_FIELDS",
	"DEDUP_CONFIDENCE", "DEDUP_THRESHOLD", "DEDUP_REMOVE_ID_DUPLICATES",
	"DEDUP_ID_FIELD", "DEDUP_METRIC", "DEDUP_WORKERS",
	"TESTS_ID_FIELD", "TESTS_OUTCOME_FIELD",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the environment and from path, which may
// be any format viper understands (.env, .yaml, .json, .toml). An empty path
// means ".env". A missing file is not an error; environment variables win
// over file values.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = ".env"
	}
	v.SetConfigFile(path)
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("HISTORY_PATH", "dedup-history.db")
	v.SetDefault("BODY_LIMIT", "10M")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DEDUP_GROUPING_FIELDS", "full_name,full_address,born_age")
	v.SetDefault("DEDUP_SIMILARITY_FIELDS", "given_name,surname,address_1,suburb")
	v.SetDefault("DEDUP_THRESHOLD_FIELDS", "given_name,surname,date_of_birth,street_number,address_1,suburb,postcode,state")
	v.SetDefault("DEDUP_CONFIDENCE", dedup.DefaultSimilarityConfidence)
	v.SetDefault("DEDUP_THRESHOLD", dedup.DefaultDuplicateRatioThreshold)
	v.SetDefault("DEDUP_REMOVE_ID_DUPLICATES", true)
	v.SetDefault("DEDUP_ID_FIELD", dedup.DefaultIDField)
	v.SetDefault("DEDUP_METRIC", similarity.NameJaroWinkler)
	v.SetDefault("DEDUP_WORKERS", 1)
	v.SetDefault("TESTS_ID_FIELD", dedup.DefaultIDField)
	v.SetDefault("TESTS_OUTCOME_FIELD", "pcr")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading the config file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.GroupingFields = splitList(cfg.GroupingFields, v.GetString("DEDUP_GROUPING_FIELDS"))
	cfg.SimilarityFields = splitList(cfg.SimilarityFields, v.GetString("DEDUP_SIMILARITY_FIELDS"))
	cfg.ThresholdFields = splitList(cfg.ThresholdFields, v.GetString("DEDUP_THRESHOLD_FIELDS"))

	return cfg, nil
}

// splitList normalizes a list setting: entries are trimmed and empty entries
// dropped. When decoding produced nothing, raw is split on commas.
func splitList(decoded []string, raw string) []string {
	if len(decoded) == 0 && raw != "" {
		decoded = strings.Split(raw, ",")
	}
	var out []string
	for _, d := range decoded {
		for _, part := range strings.Split(d, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the service is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks value ranges and the metric name. Column existence is
// checked later against the loaded dataset.
func (c *Config) Validate() error {
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("DEDUP_CONFIDENCE must be within [0,1], got %v", c.Confidence)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be within [0,1], got %v", c.Threshold)
	}
	if len(c.ThresholdFields) == 0 {
		return fmt.Errorf("DEDUP_THRESHOLD_FIELDS must list at least one field")
	}
	if c.Workers < 1 {
		return fmt.Errorf("DEDUP_WORKERS must be at least 1, got %d", c.Workers)
	}
	if _, err := similarity.ByName(c.Metric); err != nil {
		return fmt.Errorf("DEDUP_METRIC: %w", err)
	}
	if c.IsProduction() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required in production")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// DedupConfig builds the engine configuration from the loaded settings.
func (c *Config) DedupConfig() (dedup.Config, error) {
	metric, err := similarity.ByName(c.Metric)
	if err != nil {
		return dedup.Config{}, err
	}
	return dedup.Config{
		ThresholdFields:         append([]string(nil), c.ThresholdFields...),
		SimilarityFields:        append([]string(nil), c.SimilarityFields...),
		GroupingFields:          append([]string(nil), c.GroupingFields...),
		SimilarityConfidence:    c.Confidence,
		DuplicateRatioThreshold: c.Threshold,
		RemoveIDDuplicates:      c.RemoveIDDuplicates,
		IDField:                 c.IDField,
		Metric:                  metric,
		Workers:                 c.Workers,
	}, nil
}
