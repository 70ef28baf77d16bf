package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	Media      MediaConfig
	Capability CapabilityConfig
	History    HistoryConfig
	Auth       AuthConfig
	Log        LogConfig
}

type ServerConfig struct {
	Address        string
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadLimit      int64    `mapstructure:"read_limit"`
}

type DBConfig struct {
	Driver   string
	Path     string
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled       bool
	URL           string
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type MediaConfig struct {
	Root string
}

// CapabilityConfig 決定語音轉寫/翻譯/合成後端的選擇順序
type CapabilityConfig struct {
	Chain          []string
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	GoogleAPIKey   string        `mapstructure:"google_api_key"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	GeminiModel    string        `mapstructure:"gemini_model"`
	VoskModelPath  string        `mapstructure:"vosk_model_path"`
	SampleRate     int           `mapstructure:"sample_rate"`
	UseFreePremium bool          `mapstructure:"use_free_premium"`
	UseGoogleCloud bool          `mapstructure:"use_google_cloud"`
}

type HistoryConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	ArchiveAfter    time.Duration `mapstructure:"archive_after"`
	ArchiveSchedule string        `mapstructure:"archive_schedule"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	// RequireJoinToken 為 true 時 websocket join 必須附上加入房間時取得的 token
	RequireJoinToken bool `mapstructure:"require_join_token"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load 讀取 .env、config.yaml 以及 LINGUAMEET_ 前綴的環境變數
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom("./pkg/config", ".")
}

// LoadFrom 從指定目錄搜尋 config.yaml，找不到檔案時只使用預設值與環境變數
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("linguameet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.read_limit", 4<<20)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.path", "linguameet.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "linguameet")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel_prefix", "conference")

	v.SetDefault("media.root", "./media")

	v.SetDefault("capability.chain", []string{})
	v.SetDefault("capability.request_timeout", 10*time.Second)
	v.SetDefault("capability.google_api_key", "")
	v.SetDefault("capability.gemini_api_key", "")
	v.SetDefault("capability.gemini_model", "gemini-2.5-flash")
	v.SetDefault("capability.vosk_model_path", "./models/vosk-model-small-fr-0.22")
	v.SetDefault("capability.sample_rate", 16000)
	v.SetDefault("capability.use_free_premium", false)
	v.SetDefault("capability.use_google_cloud", false)

	v.SetDefault("history.page_size", 20)
	v.SetDefault("history.max_page_size", 100)
	v.SetDefault("history.archive_after", 30*24*time.Hour)
	v.SetDefault("history.archive_schedule", "@every 60m")

	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.require_join_token", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}
