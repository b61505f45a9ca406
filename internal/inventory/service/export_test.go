package service

import "time"

// SetClock replaces the reconciler's clock
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}
