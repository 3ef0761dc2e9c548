package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	OpenAI    OpenAIConfig
	Corpus    CorpusConfig
	Retrieval RetrievalConfig
	Grounding GroundingConfig
	Limits    LimitsConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type OpenAIConfig struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSec      int
}

type CorpusConfig struct {
	RawPath   string
	IndexPath string
	Version   string
}

type RetrievalConfig struct {
	TopK         int
	TopSources   int
	ChunkSize    int
	ChunkOverlap int
}

type GroundingConfig struct {
	Strict            bool
	CitationsRequired bool
}

type LimitsConfig struct {
	QuestionsPerDay     int
	QuestionsPerSession int
	CharsPerQuestion    int
	HashSalt            string
}

type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	MaxRequests   int
}

type AdminConfig struct {
	Enabled bool
	Token   string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mortgage-agent")

	viper.SetEnvPrefix("MORTGAGE_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations that would otherwise only fail mid-request.
func (c *Config) Validate() error {
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunkSize must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 {
		return fmt.Errorf("retrieval.chunkOverlap must not be negative, got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Limits.HashSalt == "" {
		return fmt.Errorf("limits.hashSalt must not be empty")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/logs/events.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.embeddingModel", "text-embedding-3-large")
	viper.SetDefault("openai.temperature", 0.2)
	viper.SetDefault("openai.maxOutputTokens", 700)
	viper.SetDefault("openai.timeoutSec", 30)

	viper.SetDefault("corpus.rawPath", "./data/corpus/raw")
	viper.SetDefault("corpus.indexPath", "./data/indexes/flat/index.vec")
	viper.SetDefault("corpus.version", "dev")

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.topSources", 3)
	viper.SetDefault("retrieval.chunkSize", 1200)
	viper.SetDefault("retrieval.chunkOverlap", 150)

	viper.SetDefault("grounding.strict", true)
	viper.SetDefault("grounding.citationsRequired", true)

	viper.SetDefault("limits.questionsPerDay", 10)
	viper.SetDefault("limits.questionsPerSession", 10)
	viper.SetDefault("limits.charsPerQuestion", 500)
	viper.SetDefault("limits.hashSalt", "local-dev-salt")

	viper.SetDefault("rateLimit.enabled", true)
	viper.SetDefault("rateLimit.windowSeconds", 60)
	viper.SetDefault("rateLimit.maxRequests", 30)

	viper.SetDefault("admin.enabled", true)
	viper.SetDefault("admin.token", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
