package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys are dotted; with the "." -> "_" replacer each key also reads the
// matching upper-case env var (media.video_timeout_seconds ->
// MEDIA_VIDEO_TIMEOUT_SECONDS).
const (
	defaultPort        = "8080"
	defaultLogMode     = "development"
	defaultDBDriver    = "postgres"
	defaultSQLitePath  = "neurocanvas.db"
	defaultTaskQueue   = "neurocanvas"
	defaultNamespace   = "neurocanvas"
	defaultMediaDir    = "./data/media"
	defaultMediaPrefix = "/media"
)

type AppConfig struct {
	Port        string
	LogMode     string
	CORSOrigins []string

	DB       DBConfig
	OpenAI   OpenAIConfig
	Redis    RedisConfig
	Temporal TemporalConfig
	Neo4j    Neo4jConfig
	Media    MediaConfig
	Intent   IntentConfig
	Plan     PlanConfig
	OTel     OTelConfig

	MetricsEnabled bool
}

type DBConfig struct {
	Driver      string
	DSN         string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	SQLitePath  string
	AutoMigrate bool
}

// PostgresDSN builds a libpq style DSN unless DSN was given verbatim.
func (c DBConfig) PostgresDSN() string {
	if strings.TrimSpace(c.DSN) != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	ImageModel     string
	ImageSize      string
	VideoModel     string
	VideoSize      string
	TimeoutSeconds int
	MaxRetries     int
	Temperature    float64
}

func (c OpenAIConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type TemporalConfig struct {
	Address           string
	Namespace         string
	TaskQueue         string
	ClientCertPath    string
	ClientKeyPath     string
	ClientCAPath      string
	AutoRegister      bool
	RetentionDays     int
	DialTimeout       time.Duration
	DialMaxWait       time.Duration
	NamespaceMaxWait  time.Duration
	WorkerConcurrency int
}

type Neo4jConfig struct {
	URI            string
	User           string
	Password       string
	Database       string
	TimeoutSeconds int
	MaxPoolSize    int
}

type MediaConfig struct {
	// Executor is "local" (in-process pollers) or "temporal".
	Executor           string
	MaxConcurrentPolls int
	PollInterval       time.Duration
	VideoTimeout       time.Duration
	ImageTimeout       time.Duration
	VideoSeconds       int
	LeaseTTL           time.Duration
	Thumbnails         bool
	// PromptBrief rewrites media prompts through the LLM before submission.
	PromptBrief bool
	// Annotation of finished media in the GCS bucket (Cloud Vision and
	// Video Intelligence).
	AnnotateImages   bool
	AnnotateVideos   bool
	AnnotateTimeout  time.Duration
	AnnotateLanguage string

	GCSBucket       string
	GCSCDNDomain    string
	GCSEmulatorHost string
	GCSCredentials  string
	PublicBaseURL   string
	LocalDir        string
	LocalURLPrefix  string
}

type IntentConfig struct {
	LLMEnabled bool
}

type PlanConfig struct {
	LLMEnabled bool
	MaxModules int
}

type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	Endpoint     string
	Headers      string
	Insecure     bool
	SampleRatio  float64
	StdoutPretty bool
}

func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

func ApplyDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", defaultPort)
	v.SetDefault("log.mode", defaultLogMode)
	v.SetDefault("cors.origins", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("db.driver", defaultDBDriver)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "neurocanvas")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("sqlite.path", defaultSQLitePath)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.model", "gpt-5.2")
	v.SetDefault("openai.image_model", "gpt-image-1")
	v.SetDefault("openai.image_size", "1024x1024")
	v.SetDefault("openai.video_model", "sora-2")
	v.SetDefault("openai.video_size", "1280x720")
	v.SetDefault("openai.timeout_seconds", 180)
	v.SetDefault("openai.max_retries", 4)
	v.SetDefault("openai.temperature", 0.2)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "neurocanvas:sse")

	v.SetDefault("temporal.address", "")
	v.SetDefault("temporal.namespace", defaultNamespace)
	v.SetDefault("temporal.task_queue", defaultTaskQueue)
	v.SetDefault("temporal.client_cert_path", "")
	v.SetDefault("temporal.client_key_path", "")
	v.SetDefault("temporal.client_ca_path", "")
	v.SetDefault("temporal.auto_register_namespace", false)
	v.SetDefault("temporal.namespace_retention_days", 7)
	v.SetDefault("temporal.dial_timeout_seconds", 5)
	v.SetDefault("temporal.dial_max_wait_seconds", 60)
	v.SetDefault("temporal.namespace_ensure_timeout_seconds", 10)
	v.SetDefault("temporal.worker_concurrency", 16)

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("neo4j.timeout_seconds", 10)
	v.SetDefault("neo4j.max_pool_size", 50)

	v.SetDefault("media.executor", "local")
	v.SetDefault("media.max_concurrent_polls", 16)
	v.SetDefault("media.poll_interval_ms", 2000)
	v.SetDefault("media.video_timeout_seconds", 180)
	v.SetDefault("media.image_timeout_seconds", 60)
	v.SetDefault("media.video_seconds", 8)
	v.SetDefault("media.lease_ttl_seconds", 30)
	v.SetDefault("media.thumbnails", true)
	v.SetDefault("media.prompt_brief", true)
	v.SetDefault("media.annotate_images", false)
	v.SetDefault("media.annotate_videos", false)
	v.SetDefault("media.annotate_timeout_seconds", 60)
	v.SetDefault("media.annotate_language", "en-US")
	v.SetDefault("media.gcs_bucket", "")
	v.SetDefault("media.gcs_cdn_domain", "")
	v.SetDefault("media.gcs_emulator_host", "")
	v.SetDefault("media.public_base_url", "")
	v.SetDefault("media.local_dir", defaultMediaDir)
	v.SetDefault("media.local_url_prefix", defaultMediaPrefix)
	v.SetDefault("google.application_credentials", "")

	v.SetDefault("intent.llm_enabled", true)
	v.SetDefault("plan.llm_enabled", true)
	v.SetDefault("plan.max_modules", 8)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "neurocanvas")
	v.SetDefault("otel.environment", "")
	v.SetDefault("otel.exporter.otlp.endpoint", "")
	v.SetDefault("otel.exporter.otlp.headers", "")
	v.SetDefault("otel.exporter.otlp.insecure", false)
	v.SetDefault("otel.sampler_ratio", 0.1)
	v.SetDefault("otel.stdout_pretty", false)

	v.SetDefault("metrics.enabled", true)
}

// Load parses runtime configuration from v.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		Port:        strings.TrimSpace(v.GetString("port")),
		LogMode:     strings.TrimSpace(v.GetString("log.mode")),
		CORSOrigins: splitList(v.GetString("cors.origins")),
		DB: DBConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("db.driver"))),
			DSN:         strings.TrimSpace(v.GetString("db.dsn")),
			Host:        v.GetString("postgres.host"),
			Port:        v.GetInt("postgres.port"),
			User:        v.GetString("postgres.user"),
			Password:    v.GetString("postgres.password"),
			Name:        v.GetString("postgres.name"),
			SSLMode:     v.GetString("postgres.sslmode"),
			SQLitePath:  strings.TrimSpace(v.GetString("sqlite.path")),
			AutoMigrate: v.GetBool("db.auto_migrate"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         strings.TrimSpace(v.GetString("openai.api_key")),
			BaseURL:        v.GetString("openai.base_url"),
			Model:          v.GetString("openai.model"),
			ImageModel:     v.GetString("openai.image_model"),
			ImageSize:      v.GetString("openai.image_size"),
			VideoModel:     v.GetString("openai.video_model"),
			VideoSize:      v.GetString("openai.video_size"),
			TimeoutSeconds: v.GetInt("openai.timeout_seconds"),
			MaxRetries:     v.GetInt("openai.max_retries"),
			Temperature:    v.GetFloat64("openai.temperature"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Temporal: TemporalConfig{
			Address:           strings.TrimSpace(v.GetString("temporal.address")),
			Namespace:         v.GetString("temporal.namespace"),
			TaskQueue:         v.GetString("temporal.task_queue"),
			ClientCertPath:    v.GetString("temporal.client_cert_path"),
			ClientKeyPath:     v.GetString("temporal.client_key_path"),
			ClientCAPath:      v.GetString("temporal.client_ca_path"),
			AutoRegister:      v.GetBool("temporal.auto_register_namespace"),
			RetentionDays:     v.GetInt("temporal.namespace_retention_days"),
			DialTimeout:       seconds(v.GetInt("temporal.dial_timeout_seconds")),
			DialMaxWait:       seconds(v.GetInt("temporal.dial_max_wait_seconds")),
			NamespaceMaxWait:  seconds(v.GetInt("temporal.namespace_ensure_timeout_seconds")),
			WorkerConcurrency: v.GetInt("temporal.worker_concurrency"),
		},
		Neo4j: Neo4jConfig{
			URI:            strings.TrimSpace(v.GetString("neo4j.uri")),
			User:           v.GetString("neo4j.user"),
			Password:       v.GetString("neo4j.password"),
			Database:       v.GetString("neo4j.database"),
			TimeoutSeconds: v.GetInt("neo4j.timeout_seconds"),
			MaxPoolSize:    v.GetInt("neo4j.max_pool_size"),
		},
		Media: MediaConfig{
			Executor:           strings.ToLower(strings.TrimSpace(v.GetString("media.executor"))),
			MaxConcurrentPolls: v.GetInt("media.max_concurrent_polls"),
			PollInterval:       time.Duration(v.GetInt("media.poll_interval_ms")) * time.Millisecond,
			VideoTimeout:       seconds(v.GetInt("media.video_timeout_seconds")),
			ImageTimeout:       seconds(v.GetInt("media.image_timeout_seconds")),
			VideoSeconds:       v.GetInt("media.video_seconds"),
			LeaseTTL:           seconds(v.GetInt("media.lease_ttl_seconds")),
			Thumbnails:         v.GetBool("media.thumbnails"),
			PromptBrief:        v.GetBool("media.prompt_brief"),
			AnnotateImages:     v.GetBool("media.annotate_images"),
			AnnotateVideos:     v.GetBool("media.annotate_videos"),
			AnnotateTimeout:    seconds(v.GetInt("media.annotate_timeout_seconds")),
			AnnotateLanguage:   strings.TrimSpace(v.GetString("media.annotate_language")),
			GCSBucket:          strings.TrimSpace(v.GetString("media.gcs_bucket")),
			GCSCDNDomain:       v.GetString("media.gcs_cdn_domain"),
			GCSEmulatorHost:    v.GetString("media.gcs_emulator_host"),
			GCSCredentials:     v.GetString("google.application_credentials"),
			PublicBaseURL:      strings.TrimSpace(v.GetString("media.public_base_url")),
			LocalDir:           v.GetString("media.local_dir"),
			LocalURLPrefix:     v.GetString("media.local_url_prefix"),
		},
		Intent: IntentConfig{LLMEnabled: v.GetBool("intent.llm_enabled")},
		Plan: PlanConfig{
			LLMEnabled: v.GetBool("plan.llm_enabled"),
			MaxModules: v.GetInt("plan.max_modules"),
		},
		OTel: OTelConfig{
			Enabled:      v.GetBool("otel.enabled"),
			ServiceName:  v.GetString("otel.service_name"),
			Environment:  v.GetString("otel.environment"),
			Endpoint:     v.GetString("otel.exporter.otlp.endpoint"),
			Headers:      v.GetString("otel.exporter.otlp.headers"),
			Insecure:     v.GetBool("otel.exporter.otlp.insecure"),
			SampleRatio:  v.GetFloat64("otel.sampler_ratio"),
			StdoutPretty: v.GetBool("otel.stdout_pretty"),
		},
		MetricsEnabled: v.GetBool("metrics.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch c.DB.Driver {
	case "postgres":
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return fmt.Errorf("sqlite.path is required when db.driver=sqlite")
		}
	default:
		return fmt.Errorf("unsupported db.driver %q (want postgres|sqlite)", c.DB.Driver)
	}
	switch c.Media.Executor {
	case "local":
	case "temporal":
		if c.Temporal.Address == "" {
			return fmt.Errorf("media.executor=temporal requires temporal.address")
		}
	default:
		return fmt.Errorf("unsupported media.executor %q (want local|temporal)", c.Media.Executor)
	}
	if c.Media.MaxConcurrentPolls <= 0 {
		return fmt.Errorf("media.max_concurrent_polls must be positive")
	}
	if c.Media.PollInterval <= 0 {
		return fmt.Errorf("media.poll_interval_ms must be positive")
	}
	if c.Media.PublicBaseURL != "" {
		u, err := url.Parse(c.Media.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("media.public_base_url must be an absolute URL")
		}
	}
	return nil
}

func seconds(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
