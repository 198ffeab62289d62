package timewindow

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("window end must be after start")

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Intersects uses the half-open test startA < endB && startB < endA, so
// windows that only touch at a boundary do not intersect.
func (w Window) Intersects(other Window) bool {
	return Intersects(w, other)
}

func Intersects(a, b Window) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// StartsAfter reports whether the window starts strictly after t.
func (w Window) StartsAfter(t time.Time) bool {
	return w.Start.After(t)
}
