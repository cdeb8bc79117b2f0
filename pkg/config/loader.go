package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache stores parsed configuration structs keyed by their type name so each
// config type is parsed from the environment exactly once per process.
type cache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &cache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into the provided configuration struct.
// The first call loads a .env file if one exists; every unique configuration
// type is parsed once and served from cache afterwards.
//
//	type CacheConfig struct {
//		L1Size int           `env:"CACHE_L1_SIZE" envDefault:"1000"`
//		L1TTL  time.Duration `env:"CACHE_L1_TTL" envDefault:"5m"`
//	}
//
//	var cfg CacheConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	typeName := typeNameOf[T]()

	globalCache.mu.RLock()
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		globalCache.mu.RUnlock()
		return nil
	}
	globalCache.mu.RUnlock()

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	globalCache.mu.Lock()
	// Another goroutine may have parsed the same type concurrently; the values
	// are identical either way, so last write wins.
	globalCache.values[typeName] = *v
	globalCache.mu.Unlock()

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Use for configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Errorf("config: failed to load %s: %w", typeNameOf[T](), err))
	}
}

func typeNameOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
