// Package logging configures the process-wide zerolog logger used by
// cmd/registryd and cmd/palletizer.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the logger's verbosity and rendering.
type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

// Setup installs cfg as the global zerolog logger.
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writer = os.Stderr
	if strings.ToLower(cfg.Format) == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}
