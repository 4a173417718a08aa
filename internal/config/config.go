package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret    string
	AdminUser     string
	AdminPassword string

	// DevClaimFallback lets the JWT claim role stand in when the subject has
	// no users row. Keep off in production.
	DevClaimFallback bool

	CORSOrigins []string

	// SweepInterval is how often the scheduled-release sweep runs in the
	// server process. Zero disables the background sweep.
	SweepInterval time.Duration
}

// FromViper reads the flag/env/config-file view assembled by the CLI.
func FromViper(v *viper.Viper) Config {
	return Config{
		HTTPAddr:         v.GetString("addr"),
		DBDriver:         v.GetString("db-driver"),
		DBDSN:            v.GetString("db-dsn"),
		AuthSecret:       v.GetString("auth-secret"),
		AdminUser:        v.GetString("admin-user"),
		AdminPassword:    v.GetString("admin-password"),
		DevClaimFallback: v.GetBool("dev-claim-fallback"),
		CORSOrigins:      v.GetStringSlice("cors-origins"),
		SweepInterval:    v.GetDuration("sweep-interval"),
	}
}
