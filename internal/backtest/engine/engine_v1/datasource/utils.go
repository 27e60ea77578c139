package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

func getIntervalMinutes(interval types.Interval) (int, error) {
	d := interval.Duration()
	if d < time.Minute {
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", interval)
	}

	return int(d / time.Minute), nil
}

// bounds turns optional range ends into Between arguments, zero meaning open.
func bounds(start, end optional.Option[time.Time]) (time.Time, time.Time) {
	var s, e time.Time

	if start.IsSome() {
		s = start.Unwrap()
	}

	if end.IsSome() {
		e = end.Unwrap()
	}

	return s, e
}

func dataUnavailable(symbol string, interval types.Interval) error {
	return errors.Newf(errors.ErrCodeDataUnavailable, "no %s bars for %s in the requested range", interval, symbol)
}
