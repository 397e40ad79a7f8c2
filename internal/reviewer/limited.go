package reviewer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited throttles a Completer to a fixed number of calls per minute.
type Limited struct {
	Completer
	limiter *rate.Limiter
}

// NewLimited wraps c. A non-positive perMinute leaves c unthrottled.
func NewLimited(c Completer, perMinute int) Completer {
	if perMinute <= 0 {
		return c
	}
	return &Limited{
		Completer: c,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (l *Limited) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Completer.Complete(ctx, system, user, maxTokens)
}
