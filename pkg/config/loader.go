package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)

	envFilesOnce sync.Once
	envFiles     = []string{".env"}
)

// SetEnvFiles overrides the dotenv files read before the first Load.
// Must be called before any Load call to take effect.
func SetEnvFiles(files ...string) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	envFiles = files
}

// Load parses environment variables into v using `env` struct tags.
// Each configuration type is parsed once per process; later calls receive
// a copy of the cached value.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	envFilesOnce.Do(func() {
		cacheMu.RLock()
		files := envFiles
		cacheMu.RUnlock()
		// Missing dotenv files are fine: production reads real env vars.
		_ = godotenv.Load(files...)
	})

	key := reflect.TypeFor[T]()

	cacheMu.RLock()
	cached, ok := cache[key]
	cacheMu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure.
// Intended for startup code where a missing setting must stop the process.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load %T: %v", v, err))
	}
}

// Reset drops every cached configuration so the next Load re-reads the environment.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}
