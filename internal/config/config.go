package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/validation"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env-default:"local"`
	GitHub   GitHub   `yaml:"github"`
	Eramba   Eramba   `yaml:"eramba"`
	OpenAI   OpenAI   `yaml:"openai"`
	Analysis Analysis `yaml:"analysis"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Server   Server   `yaml:"server"`
}

type GitHub struct {
	Token string `env:"GITHUB_TOKEN" env-required:"true"`
	Repo  string `yaml:"repo" env:"GITHUB_REPO" env-required:"true" validate:"repo_slug"`
}

type Eramba struct {
	BaseURL   string `yaml:"base_url" env:"ERAMBA_BASE_URL" env-default:"https://localhost:8443"`
	Token     string `env:"ERAMBA_TOKEN" env-required:"true"`
	ControlID int    `yaml:"control_id" env:"ERAMBA_CONTROL_ID" env-default:"123" validate:"gt=0"`
	VerifySSL bool   `yaml:"verify_ssl" env:"VERIFY_SSL" env-default:"false"`
}

type OpenAI struct {
	APIKey      string  `env:"OPENAI_API_KEY"`
	Model       string  `yaml:"model" env-default:"gpt-4o-mini"`
	Temperature float32 `yaml:"temperature" env-default:"0.7"`
	MaxTokens   int     `yaml:"max_tokens" env-default:"4096"`
}

type Analysis struct {
	Days      int `yaml:"days" env-default:"30" validate:"gt=0"`
	MinSample int `yaml:"min_sample" env-default:"50" validate:"gt=0"`

	FetchTTL    time.Duration `yaml:"fetch_ttl" env-default:"24h"`
	AnalysisTTL time.Duration `yaml:"analysis_ttl" env-default:"168h"`

	MinComplianceRate     float64 `yaml:"min_compliance_rate" env-default:"0.95" validate:"gte=0,lte=1"`
	MaxHighRiskProportion float64 `yaml:"max_high_risk_proportion" env-default:"0.10" validate:"gte=0,lte=1"`

	// RequireReviewComments enables the review-thoroughness rule: a High or
	// Critical PR merged with zero review comments is a violation.
	RequireReviewComments bool `yaml:"require_review_comments" env-default:"true"`
}

type Storage struct {
	// Backend selects the evidence store: "file" or "postgres".
	Backend     string `yaml:"backend" env-default:"file" validate:"oneof=file postgres"`
	EvidenceDir string `yaml:"evidence_dir" env-default:"storage/evidence"`
	CacheDir    string `yaml:"cache_dir" env-default:"storage/cache"`
}

type Postgres struct {
	Username        string        `env:"POSTGRES_USER"`
	Password        string        `env:"POSTGRES_PASSWORD"`
	Host            string        `yaml:"host" env-default:"localhost"`
	Port            string        `env:"POSTGRES_PORT" env-default:"5432"`
	Database        string        `env:"POSTGRES_DB"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env-default:"1m"`
}

type Server struct {
	Host    string        `yaml:"host" env-default:"localhost"`
	Port    string        `yaml:"port" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, fmt.Errorf("%w: CONFIG_PATH is not set", apperrors.ErrConfiguration)
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("%w: config file does not exist: %v", apperrors.ErrConfiguration, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%w: cannot read config: %v", apperrors.ErrConfiguration, err)
	}

	if err := validation.ValidateStruct(&cfg); err != nil {
		var validationErr *validation.ValidationError
		if errors.As(err, &validationErr) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrConfiguration, validationErr.Error())
		}

		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	return &cfg, nil
}

// MustLoad is Load for main functions: it aborts the process on any
// configuration error, before any PR processing starts.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}
