package config

import (
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"gomarket"`

	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Minio  MinioConfig
	Email  EmailConfig
	Jaeger JaegerConfig
}

type ServerConfig struct {
	Mode   string `env:"SERVER_MODE"   envDefault:"dev"`
	Port   int    `env:"SERVER_PORT"   envDefault:"8080"`
	Scheme string `env:"SERVER_SCHEME" envDefault:"http"`
	Domain string `env:"SERVER_DOMAIN" envDefault:"localhost"`
}

type DBConfig struct {
	Host     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT"     envDefault:"5432"`
	User     string `env:"POSTGRES_USER"     envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Database string `env:"POSTGRES_DB"       envDefault:"gomarket"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS" envDefault:""`
}

type AuthConfig struct {
	JWT JWTConfig
}

type JWTConfig struct {
	Issuer        string `env:"JWT_ISSUER" envDefault:"gomarket"`
	AccessSecret  string `env:"JWT_ACCESS_SECRET,required"`
	RefreshSecret string `env:"JWT_REFRESH_SECRET,required"`
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"   envDefault:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"MINIO_BUCKET"     envDefault:"gomarket"`
	UseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
}

type EmailConfig struct {
	Server string `env:"EMAIL_SERVER" envDefault:""`
	Port   int    `env:"EMAIL_PORT"   envDefault:"587"`
	User   string `env:"EMAIL_USER"   envDefault:""`
	Pass   string `env:"EMAIL_PASS"   envDefault:""`
	Admin  string `env:"EMAIL_ADMIN"  envDefault:""`
}

type JaegerConfig struct {
	Sampler  JaegerSamplerConfig
	Reporter JaegerReporterConfig
}

type JaegerSamplerConfig struct {
	Type  string `env:"JAEGER_SAMPLER_TYPE"  envDefault:"const"`
	Param int    `env:"JAEGER_SAMPLER_PARAM" envDefault:"1"`
}

type JaegerReporterConfig struct {
	LogSpans           bool   `env:"JAEGER_REPORTER_LOG_SPANS" envDefault:"false"`
	LocalAgentHostPort string `env:"JAEGER_AGENT_HOST_PORT"    envDefault:"localhost:6831"`
}

func MustLoad(envPath string) Config {
	if err := godotenv.Load(envPath); err != nil {
		zap.L().Info("No .env file found, relying on environment", zap.String("path", envPath))
	}

	conf := Config{}
	if err := env.Parse(&conf); err != nil {
		zap.L().Fatal("failed to parse configuration", zap.Error(err))
	}

	return conf
}
