package observability

import (
	"time"

	"github.com/rs/zerolog"
)

// LogCodec writes one structured line per encode or decode. Failures are
// warnings; successes are debug noise.
func LogCodec(logger zerolog.Logger, op, definition string, n int, duration time.Duration, err error) {
	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Str("op", op).
		Str("definition", definition).
		Int("bytes", n).
		Dur("duration", duration).
		Msg("codec")
}
