package retry

import (
	"context"
	"errors"
	"reflect"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
)

var log = logging.Logger("retry")

// ErrorIsIn reports whether err is, or wraps, an error of the same concrete
// type as one of errorTypes.
func ErrorIsIn(err error, errorTypes []error) bool {
	for _, etype := range errorTypes {
		if errors.Is(err, etype) {
			return true
		}
		v := reflect.ValueOf(etype)
		if v.Kind() != reflect.Pointer {
			continue
		}
		tmp := reflect.New(reflect.PointerTo(v.Elem().Type())).Interface()
		if errors.As(err, tmp) {
			return true
		}
	}
	return false
}

// Retry calls f up to attempts times, doubling the wait from sleep after each
// failure. A nil retryable retries every error.
func Retry[T any](ctx context.Context, attempts int, sleep time.Duration, retryable func(error) bool, f func() (T, error)) (result T, err error) {
	b := &backoff.Backoff{
		Min:    sleep,
		Max:    sleep << 6,
		Factor: 2,
	}

	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := b.Duration()
			log.Infow("retrying after error", "attempt", i+1, "wait", wait, "err", err)

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return result, ctx.Err()
			case <-t.C:
			}
		}

		result, err = f()
		if err == nil {
			return result, nil
		}
		if retryable != nil && !retryable(err) {
			return result, err
		}
	}

	log.Errorw("failed after retries", "attempts", attempts, "err", err)
	return result, err
}
