package dose

import (
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// Adherence summarises occurrences due in a date range.
type Adherence struct {
	From    model.Date `json:"from"`
	To      model.Date `json:"to"`
	Planned int        `json:"planned"`
	Taken   int        `json:"taken"`
	Late    int        `json:"late"`
	Skipped int        `json:"skipped"`
	Missed  int        `json:"missed"`
	// Ratio is Taken/Planned, 0 when nothing was due.
	Ratio float64 `json:"ratio"`
}

// Adherence counts the profile's occurrences from..to inclusive whose
// effective time is not after now. Pending and snoozed occurrences past due
// count as missed.
func (r *Reconciler) Adherence(st *model.AppState, profileID string, from, to model.Date, now time.Time) Adherence {
	a := Adherence{From: from, To: to}
	for d := from; !d.After(to); d = d.AddDays(1) {
		for _, inst := range r.InstancesForDate(st, profileID, d, now) {
			if inst.EffectiveAt.After(now) && inst.Actionable() {
				continue
			}
			a.Planned++
			switch inst.Status {
			case StatusTaken:
				a.Taken++
				if inst.IsLate {
					a.Late++
				}
			case StatusSkipped:
				a.Skipped++
			default:
				a.Missed++
			}
		}
	}
	if a.Planned > 0 {
		a.Ratio = float64(a.Taken) / float64(a.Planned)
	}
	return a
}
