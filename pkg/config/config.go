// Package config loads typed configuration structs from environment
// variables, with values described by `env` struct tags from
// github.com/caarlos0/env. A .env file, when present, is loaded once before
// the first parse.
package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer    = errors.New("config: nil pointer provided")
	ErrParsingConfig = errors.New("config: failed to parse configuration")
)

var loadDotEnv sync.Once

// Load populates the given configuration struct from the environment.
//
// Example:
//
//	type MongoConfig struct {
//		URL string `env:"MONGODB_URL,required"`
//	}
//
//	var cfg MongoConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	loadDotEnv.Do(func() {
		// The .env file is optional; absence is not an error.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure, for configuration the
// application cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(err)
	}
}
