// Package config loads typed application settings from environment variables.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tag parsing). Every package that needs
// settings owns a Config struct with `env` tags; the composition root loads
// each of them through Load or MustLoad:
//
//	var dbCfg pg.Config
//	config.MustLoad(&dbCfg)
//
// Parsed values are cached per type, so repeated loads from different parts of
// the program are cheap and consistent. Tests that mutate the environment call
// Reset between cases.
package config
