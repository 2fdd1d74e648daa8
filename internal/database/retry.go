package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Startup tolerates dependencies that come up a little after the server,
// as happens with docker compose.
const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// retry runs fn until it succeeds, attempts are used up or ctx ends. The
// wait doubles after every failure.
func retry(ctx context.Context, log zerolog.Logger, what string, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	var err error
	for i := 1; ; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i >= attempts {
			return err
		}
		log.Warn().Err(err).Str("target", what).Int("attempt", i).Dur("backoff", backoff).Msg("Connection failed, retrying")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
