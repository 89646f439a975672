// Package config loads runtime settings from the environment, with a .env
// file honored in development.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`

	SessionTTLMin int `envconfig:"SESSION_TTL_MIN" default:"60"`

	// Auction
	InitialBudget int `envconfig:"INITIAL_BUDGET" default:"2000"`
	BidIncrement  int `envconfig:"BID_INCREMENT" default:"100"`
	BonusAmount   int `envconfig:"BONUS_AMOUNT" default:"500"`
	BidWindowSec  int `envconfig:"BID_WINDOW_SEC" default:"30"`
	SoftCloseSec  int `envconfig:"SOFT_CLOSE_SEC" default:"10"`

	// Snake draft
	PickWindowSec int `envconfig:"PICK_WINDOW_SEC" default:"30"`

	// Role assignment
	RoleWindowSec int `envconfig:"ROLE_WINDOW_SEC" default:"90"`

	RosterSize int `envconfig:"ROSTER_SIZE" default:"5"`
}

func Load() (Config, error) {
	_ = godotenv.Load() // best effort; real env wins
	var c Config
	err := envconfig.Process("", &c)
	return c, err
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}
