package auth

import (
	"fmt"
	"strings"
)

const (
	AuthModeMemory   = "memory"
	AuthModeLocal    = "local"
	AuthModePostgres = "postgres"
)

// NewServiceFromEnv builds the auth backend for the given mode. Remaining
// connection settings come from the environment.
func NewServiceFromEnv(mode string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", AuthModeMemory, "mem":
		return NewManager(), nil
	case AuthModeLocal, "sqlite":
		return NewSQLiteManagerFromEnv()
	case AuthModePostgres, "postgresql", "db":
		return NewPostgresManagerFromEnv()
	default:
		return nil, fmt.Errorf("invalid AUTH_MODE %q (supported: %s, %s, %s)",
			mode, AuthModeMemory, AuthModeLocal, AuthModePostgres)
	}
}
