package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sirupsen/logrus"
)

type Level int

const (
	// DebugLevel defines debug log level.
	DebugLevel Level = iota
	// InfoLevel defines info log level.
	InfoLevel
	// WarnLevel defines warn log level.
	WarnLevel
	// ErrorLevel defines error log level.
	ErrorLevel
)

//nolint:gochecknoglobals
var output io.Writer = os.Stderr

// SetOutput redirects the console writer, mostly for tests.
func SetOutput(w io.Writer) {
	output = w
}

func SetLevel(level Level) {
	// sigs.k8s.io/bom logs through logrus, keep it quiet
	logrus.SetLevel(logrus.ErrorLevel)

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.Level(level))
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
		With().Timestamp().Caller().Logger()
}
