package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/config"
)

type defaultsConfig struct {
	Name    string        `env:"CFG_TEST_NAME" envDefault:"mymechanic"`
	Limit   int           `env:"CFG_TEST_LIMIT" envDefault:"50"`
	Timeout time.Duration `env:"CFG_TEST_TIMEOUT" envDefault:"5s"`
}

type overrideConfig struct {
	Name string `env:"CFG_TEST_OVERRIDE" envDefault:"default"`
}

type requiredConfig struct {
	Secret string `env:"CFG_TEST_REQUIRED,required"`
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		config.Reset()

		var cfg defaultsConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "mymechanic", cfg.Name)
		assert.Equal(t, 50, cfg.Limit)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("reads environment", func(t *testing.T) {
		config.Reset()
		t.Setenv("CFG_TEST_OVERRIDE", "from-env")

		var cfg overrideConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "from-env", cfg.Name)
	})

	t.Run("missing required value", func(t *testing.T) {
		config.Reset()

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrParsingConfig))
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[defaultsConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("caches per type until reset", func(t *testing.T) {
		config.Reset()
		t.Setenv("CFG_TEST_CACHED", "first")

		var first cachedConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("CFG_TEST_CACHED", "second")
		var second cachedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "first", second.Value)

		config.Reset()
		var third cachedConfig
		require.NoError(t, config.Load(&third))
		assert.Equal(t, "second", third.Value)
	})
}

func TestMustLoad(t *testing.T) {
	config.Reset()

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
