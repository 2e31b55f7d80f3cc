package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Expirer is implemented by session stores that can purge stale entries.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// Sweep purges expired sessions every interval until ctx is done.
func Sweep(ctx context.Context, store Expirer, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("session sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("purged", n).Debug("expired sessions purged")
			}
		}
	}
}
