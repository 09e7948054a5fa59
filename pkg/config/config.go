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
	Auth      AuthConfig
	Model     ModelConfig
	Analysis  AnalysisConfig
	RateLimit RateLimitConfig
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
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
	BcryptCost    int
}

type ModelConfig struct {
	Dir string
}

type AnalysisConfig struct {
	MaxSequenceLength int
	VocabCapacity     int
	HighRiskThreshold float64
	CacheTTLMinutes   int
	MaxTextLength     int
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
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
	viper.AddConfigPath("/etc/matrix-ai")

	viper.SetEnvPrefix("MATRIX_AI")
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

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/matrixai.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("auth.jwtSecret", "change_me_in_production")
	viper.SetDefault("auth.tokenTTLHours", 24)
	viper.SetDefault("auth.bcryptCost", 10)

	viper.SetDefault("model.dir", "./data/models")

	// Sequence length and risk threshold mirror the trained model; change
	// them only together with a retrain.
	viper.SetDefault("analysis.maxSequenceLength", 100)
	viper.SetDefault("analysis.vocabCapacity", 10000)
	viper.SetDefault("analysis.highRiskThreshold", 0.7)
	viper.SetDefault("analysis.cacheTTLMinutes", 10)
	viper.SetDefault("analysis.maxTextLength", 20000)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
