package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env           string `mapstructure:"env"`
	Port          string `mapstructure:"port"`
	BaseURL       string `mapstructure:"base_url"`
	FrontendURL   string `mapstructure:"frontend_url"`
	UploadDir     string `mapstructure:"upload_dir"`
	CORSOrigins   string `mapstructure:"cors_origins"`
	AuthRateLimit int    `mapstructure:"auth_rate_limit"` // requests per 15 minutes per IP
}

type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	FallbackDSN string `mapstructure:"fallback_dsn"`
}

type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	FallbackURI string `mapstructure:"fallback_uri"`
	Database    string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpiresMin int    `mapstructure:"expires_min"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MailConfig struct {
	PostmarkToken string `mapstructure:"postmark_token"`
	From          string `mapstructure:"from"`
}

type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
}

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	DB     DBConfig     `mapstructure:"db"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Redis  RedisConfig  `mapstructure:"redis"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Google GoogleConfig `mapstructure:"google"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Mail   MailConfig   `mapstructure:"mail"`
	S3     S3Config     `mapstructure:"s3"`
}

func (c Config) Development() bool {
	return c.App.Env != "production"
}

var defaults = map[string]any{
	"app.env":             "development",
	"app.port":            "5000",
	"app.base_url":        "",
	"app.frontend_url":    "http://localhost:3000",
	"app.upload_dir":      "./uploads",
	"app.cors_origins":    "http://localhost:3000, http://127.0.0.1:3000",
	"app.auth_rate_limit": 100,

	"db.dsn":          "",
	"db.fallback_dsn": "host=localhost user=postgres password=postgres dbname=skilllink port=5432 sslmode=disable",

	"mongo.uri":          "",
	"mongo.fallback_uri": "mongodb://localhost:27017/skilllink",
	"mongo.database":     "skilllink",

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":      "",
	"jwt.expires_min": 30 * 24 * 60,

	"google.client_id":     "",
	"google.client_secret": "",
	"google.redirect_url":  "",

	"kafka.brokers": []string{},
	"kafka.topic":   "skilllink.requests",

	"mail.postmark_token": "",
	"mail.from":           "no-reply@skilllink.app",

	"s3.bucket": "",
	"s3.region": "us-east-1",
}

// Load reads configuration from the environment (APP_PORT, DB_DSN, JWT_SECRET,
// ...) and, when CONFIG_FILE is set, from that YAML file. Environment wins.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	// KAFKA_BROKERS is comma separated
	c.Kafka.Brokers = splitList(strings.Join(c.Kafka.Brokers, ","))

	if c.JWT.Secret == "" {
		return Config{}, fmt.Errorf("missing env: JWT_SECRET")
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
