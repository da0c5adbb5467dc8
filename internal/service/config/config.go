package config

import (
	"context"
	"flag"
	"log/slog"

	"github.com/caarlos0/env/v6"
	passwordvalidator "github.com/wagslane/go-password-validator"

	"github.com/guildpoints/points-ledger/internal/model"
)

type Config struct {
	RunAddr       string `env:"RUN_ADDRESS"    envDefault:"localhost:8080"`
	DatabaseURI   string `env:"DATABASE_URI"   envDefault:""`
	SecretKey     string `env:"SECRET_KEY"     envDefault:""`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:""`
	LogLevel      string `env:"LOG_LEVEL"      envDefault:"info"`
	CORSOrigin    string `env:"CORS_ORIGIN"    envDefault:""`
}

type Builder struct {
	cfg *Config
	log *slog.Logger
}

func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{
		cfg: &Config{
			RunAddr:       "",
			DatabaseURI:   "",
			SecretKey:     "",
			AdminPassword: "",
			LogLevel:      "",
			CORSOrigin:    "",
		},
		log: log,
	}
}

func (b *Builder) FromEnv() *Builder {
	if err := env.Parse(b.cfg); err != nil {
		b.log.LogAttrs(context.Background(),
			slog.LevelError, "Failed to parse config", slog.Any(model.KeyLoggerError, err))
	}
	return b
}

func (b *Builder) FromFlags() *Builder {
	flag.StringVar(&b.cfg.RunAddr, "a", b.cfg.RunAddr, "Run address")
	flag.StringVar(&b.cfg.DatabaseURI, "d", b.cfg.DatabaseURI, "Database URI")
	flag.StringVar(&b.cfg.SecretKey, "k", b.cfg.SecretKey, "Secret key")
	flag.StringVar(&b.cfg.AdminPassword, "p", b.cfg.AdminPassword, "Admin password")
	flag.StringVar(&b.cfg.LogLevel, "l", b.cfg.LogLevel, "Log level")
	flag.StringVar(&b.cfg.CORSOrigin, "c", b.cfg.CORSOrigin, "Allowed CORS origin")

	flag.Parse()
	return b
}

func (b *Builder) GetConfig() *Config {
	const minEntropyBits = 50
	if b.cfg.AdminPassword != "" {
		if err := passwordvalidator.Validate(b.cfg.AdminPassword, minEntropyBits); err != nil {
			b.log.LogAttrs(context.Background(),
				slog.LevelWarn,
				"admin password is weak",
				slog.Any(model.KeyLoggerError, err))
		}
	}
	return b.cfg
}
