package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Neo4j      Neo4jConfig
	Vector     VectorConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Cache      CacheConfig
	LLM        LLMConfig
	Extraction ExtractionConfig
	Ingestion  IngestionConfig
	Retrieval  RetrievalConfig
	Synthesis  SynthesisConfig
	Paths      PathsConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      int
	WriteTimeout     int
	BodyLimit        int
	RequestsPerMin   int
	MaxQuestionChars int
	AllowOrigins     string
}

type Neo4jConfig struct {
	URI        string
	Username   string
	Password   string
	Database   string
	TimeoutSec int
}

type VectorConfig struct {
	Provider  string
	Dimension int
	Qdrant    QdrantConfig
	Milvus    MilvusConfig
}

type QdrantConfig struct {
	Address        string
	APIKey         string
	UseTLS         bool
	CollectionName string
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled      bool
	AnswerTTLSec int
	EmbedTTLSec  int
}

func (c CacheConfig) AnswerTTL() time.Duration {
	return time.Duration(c.AnswerTTLSec) * time.Second
}

func (c CacheConfig) EmbeddingTTL() time.Duration {
	return time.Duration(c.EmbedTTLSec) * time.Second
}

type LLMConfig struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float32
	MaxTokens       int
	TimeoutSec      int
	MaxRetries      int
	EmbeddingModel  string
	AzureEndpoint   string
	AzureAPIVersion string
	// AzureDeployments maps model names to Azure deployment names.
	AzureDeployments map[string]string
}

type ExtractionConfig struct {
	Workers   int
	MaxTokens int
}

type IngestionConfig struct {
	ChunkSize    int
	ChunkOverlap int
	HeaderChars  int
}

type RetrievalConfig struct {
	TopK int
}

type SynthesisConfig struct {
	MinCandidates int
	MaxTokens     int
}

type PathsConfig struct {
	ChunksCSV     string
	TriplesCSV    string
	FailedCSV     string
	NormalizedCSV string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lexgraph")

	v.SetEnvPrefix("LEXGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "azure":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.Vector.Provider {
	case "qdrant", "milvus":
	default:
		return fmt.Errorf("unsupported vector provider %q", c.Vector.Provider)
	}
	if c.Extraction.Workers <= 0 {
		return fmt.Errorf("extraction.workers must be positive, got %d", c.Extraction.Workers)
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunkOverlap (%d) must be smaller than ingestion.chunkSize (%d)",
			c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 120)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.requestsPerMin", 30)
	v.SetDefault("server.maxQuestionChars", 4000)
	v.SetDefault("server.allowOrigins", "*")

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.timeoutSec", 10)

	v.SetDefault("vector.provider", "qdrant")
	v.SetDefault("vector.dimension", 3072)
	v.SetDefault("vector.qdrant.address", "localhost:6334")
	v.SetDefault("vector.qdrant.useTLS", false)
	v.SetDefault("vector.qdrant.collectionName", "law")
	v.SetDefault("vector.milvus.endpoint", "localhost:19530")
	v.SetDefault("vector.milvus.collectionName", "law")

	v.SetDefault("sqlite.path", "./data/lexgraph.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.answerTTLSec", 3600)
	v.SetDefault("cache.embedTTLSec", 86400)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.maxTokens", 4096)
	v.SetDefault("llm.timeoutSec", 30)
	v.SetDefault("llm.maxRetries", 2)
	v.SetDefault("llm.embeddingModel", "text-embedding-3-large")
	v.SetDefault("llm.azureAPIVersion", "2024-12-01-preview")

	v.SetDefault("extraction.workers", 10)
	v.SetDefault("extraction.maxTokens", 2048)

	v.SetDefault("ingestion.chunkSize", 1500)
	v.SetDefault("ingestion.chunkOverlap", 150)
	v.SetDefault("ingestion.headerChars", 16000)

	v.SetDefault("retrieval.topK", 5)

	v.SetDefault("synthesis.minCandidates", 3)
	v.SetDefault("synthesis.maxTokens", 4096)

	v.SetDefault("paths.chunksCSV", "all_chunks.csv")
	v.SetDefault("paths.triplesCSV", "extract_KG.csv")
	v.SetDefault("paths.failedCSV", "failed_chunks.csv")
	v.SetDefault("paths.normalizedCSV", "normalized_KG.csv")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
