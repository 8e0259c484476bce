// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each configuration type is parsed once per process and cached, so
// independent components can load their own config without re-reading
// the environment:
//
//	type SMTPConfig struct {
//		Host string `env:"SMTP_HOST,required"`
//		Port int    `env:"SMTP_PORT" envDefault:"587"`
//	}
//
//	var cfg SMTPConfig
//	config.MustLoad(&cfg)
package config
