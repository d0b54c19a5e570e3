package lpdispatch

import (
	"fmt"

	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/rs/zerolog"
)

// construct composes the overlay for one solve on the shared base model.
func (d *LPDispatch) construct(o hub.Objective, bounds []hub.Bound) (lp.Problem, error) {
	p, err := d.model.Problem(o, bounds...)
	if err != nil {
		return lp.Problem{}, fmt.Errorf("construct %s: %w", o, err)
	}
	return p, nil
}

// boundsArray renders the bounds of a solve for structured logs.
func boundsArray(bounds []hub.Bound) *zerolog.Array {
	arr := zerolog.Arr()
	for _, b := range bounds {
		arr.Str(b.String())
	}
	return arr
}
