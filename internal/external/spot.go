package external

import (
	"context"
	"errors"
)

type SpotSource interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// FallbackSpot tries each source in order and returns the first price.
type FallbackSpot []SpotSource

func (f FallbackSpot) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	var errs []error
	for _, src := range f {
		if src == nil {
			continue
		}
		p, err := src.SpotPrice(ctx, symbol)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return 0, errors.New("no spot price source configured")
	}
	return 0, errors.Join(errs...)
}
