package store

import "time"

const (
	DefaultRoleKey  = "userRole"
	DefaultTokenKey = "authToken"
)

type Config struct {
	// RoleKey is the storage key holding the current role
	RoleKey string

	// TokenKey is the storage key holding the auth credential used for the
	// server fallback
	TokenKey string

	// FetchTimeout bounds the server fallback inside Load, zero disables it
	FetchTimeout time.Duration

	// ReloadRate limits invalidation-triggered reloads per second, zero or
	// below means unlimited
	ReloadRate float64

	// ReloadBurst is the limiter burst size
	ReloadBurst int
}

func DefaultConfig() Config {
	return Config{
		RoleKey:      DefaultRoleKey,
		TokenKey:     DefaultTokenKey,
		FetchTimeout: 10 * time.Second,
		ReloadRate:   2,
		ReloadBurst:  1,
	}
}

func (c Config) withDefaults() Config {
	if c.RoleKey == "" {
		c.RoleKey = DefaultRoleKey
	}
	if c.TokenKey == "" {
		c.TokenKey = DefaultTokenKey
	}
	if c.ReloadBurst < 1 {
		c.ReloadBurst = 1
	}
	return c
}
