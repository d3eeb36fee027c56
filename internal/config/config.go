package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	JWTSecret     string `env:"JWT_SECRET"`

	JWTAccessTTLMinutes int `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`

	ChatFetchLimit    int `env:"CHAT_FETCH_LIMIT" envDefault:"50"`
	ChatMaxFetchLimit int `env:"CHAT_MAX_FETCH_LIMIT" envDefault:"200"`
	FanoutConcurrency int `env:"FANOUT_CONCURRENCY" envDefault:"8"`

	SendRateMax           int `env:"SEND_RATE_MAX" envDefault:"30"`
	SendRateWindowSeconds int `env:"SEND_RATE_WINDOW_SECONDS" envDefault:"60"`

	WSAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SendRateWindow devuelve la ventana del rate limiter de envios.
func (c *Config) SendRateWindow() time.Duration {
	if c.SendRateWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SendRateWindowSeconds) * time.Second
}
