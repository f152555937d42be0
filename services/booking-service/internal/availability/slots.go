package availability

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

func (i Interval) overlaps(start, end int) bool {
	// [start,end) overlaps [i.Start,i.End) iff start < i.End && i.Start < end.
	return start < i.End && i.Start < end
}

// Grid is the salon's daily slot layout: starts every Step minutes from Open
// until Close, skipping the Breaks (lunch). Break starts are never emitted.
type Grid struct {
	Open   int
	Close  int
	Step   int
	Breaks []Interval
}

// DefaultGrid is 9:00 AM to 7:00 PM every 30 minutes with lunch from noon to 1:00 PM.
func DefaultGrid() Grid {
	return Grid{
		Open:   9 * 60,
		Close:  19 * 60,
		Step:   30,
		Breaks: []Interval{{Start: 12 * 60, End: 13 * 60}},
	}
}

func (g Grid) Validate() error {
	if g.Step <= 0 {
		return errors.New("grid step must be positive")
	}
	if g.Open < 0 || g.Close > clock.MinutesPerDay || g.Close <= g.Open {
		return fmt.Errorf("grid hours invalid: open %d close %d", g.Open, g.Close)
	}
	for _, b := range g.Breaks {
		if b.End <= b.Start {
			return fmt.Errorf("grid break invalid: %d-%d", b.Start, b.End)
		}
	}
	return nil
}

// Starts returns the bookable start minutes in order.
func (g Grid) Starts() []int {
	if g.Step <= 0 {
		return nil
	}
	var starts []int
	for t := g.Open; t < g.Close; t += g.Step {
		if g.inBreak(t, t+1) {
			continue
		}
		starts = append(starts, t)
	}
	return starts
}

func (g Grid) inBreak(start, end int) bool {
	for _, b := range g.Breaks {
		if b.overlaps(start, end) {
			return true
		}
	}
	return false
}

// fits reports whether a service of duration minutes starting at start ends by
// closing time without running into a break.
func (g Grid) fits(start, duration int) bool {
	if duration <= 0 {
		return true
	}
	end := start + duration
	return end <= g.Close && !g.inBreak(start, end)
}

// Offers reports whether start is a grid start that a service of duration
// minutes can occupy.
func (g Grid) Offers(start, duration int) bool {
	for _, t := range g.Starts() {
		if t == start {
			return g.fits(start, duration)
		}
	}
	return false
}

// BookedSet holds the spans already occupied on one staff member's day.
type BookedSet []model.BookedSpan

// NewBookedSet builds a set from bare start labels, each occupying only its
// start minute. Labels are normalized so "9:30 am" and "09:30 AM" collide.
func NewBookedSet(labels ...string) (BookedSet, error) {
	set := make(BookedSet, 0, len(labels))
	for _, l := range labels {
		m, err := clock.ToMinutes(l)
		if err != nil {
			return nil, err
		}
		set = append(set, model.BookedSpan{Start: m, End: m + 1})
	}
	return set, nil
}

// SpanSet copies spans into a set. An end at or before its start is read as
// running past midnight.
func SpanSet(spans []model.BookedSpan) BookedSet {
	set := make(BookedSet, 0, len(spans))
	for _, sp := range spans {
		if sp.End <= sp.Start {
			sp.End += clock.MinutesPerDay
		}
		set = append(set, sp)
	}
	return set
}

// Overlaps reports whether [start, end) intersects any span in the set.
func (b BookedSet) Overlaps(start, end int) bool {
	for _, sp := range b {
		if (Interval{Start: sp.Start, End: sp.End}).overlaps(start, end) {
			return true
		}
	}
	return false
}

// Has reports whether the start minute of label is occupied.
func (b BookedSet) Has(label string) bool {
	if len(b) == 0 {
		return false
	}
	m, err := clock.ToMinutes(label)
	if err != nil {
		return false
	}
	return b.Overlaps(m, m+1)
}

// Without drops the spans belonging to appointmentID.
func (b BookedSet) Without(appointmentID string) BookedSet {
	if appointmentID == "" {
		return b
	}
	out := make(BookedSet, 0, len(b))
	for _, sp := range b {
		if sp.AppointmentID != appointmentID {
			out = append(out, sp)
		}
	}
	return out
}

type SlotOptions struct {
	// DurationMinutes, when positive, fills EndTime and closes slots the service
	// cannot fit or whose [start, start+duration) overlaps a booked span.
	DurationMinutes int
	// NotBefore closes slots starting before this minute of the day (past times today).
	NotBefore int
	// StaffUnavailable closes every slot.
	StaffUnavailable bool
}

// Slots lays the grid out for one staff member on one date.
func (g Grid) Slots(date, staffID string, booked BookedSet, opts SlotOptions) []model.TimeSlot {
	starts := g.Starts()
	slots := make([]model.TimeSlot, 0, len(starts))
	taken := make([]bool, 0, len(starts))
	for _, m := range starts {
		label := clock.ToLabel(m)
		isBooked := booked.Overlaps(m, m+1)
		clash := isBooked
		if opts.DurationMinutes > 0 {
			clash = booked.Overlaps(m, m+opts.DurationMinutes)
		}
		slot := model.TimeSlot{
			ID:        SlotID(date, staffID, m),
			Date:      date,
			StartTime: label,
			StaffID:   staffID,
			Available: !clash && !opts.StaffUnavailable && m >= opts.NotBefore && g.fits(m, opts.DurationMinutes),
		}
		if opts.DurationMinutes > 0 {
			slot.EndTime = clock.ToLabel(m + opts.DurationMinutes)
		}
		slots = append(slots, slot)
		taken = append(taken, isBooked)
	}
	applyMarkers(slots, taken)
	return slots
}

// SlotID is stable for a date, staff member and start minute.
func SlotID(date, staffID string, minutes int) string {
	return fmt.Sprintf("%s_%s_%02d%02d", date, staffID, minutes/60, minutes%60)
}

// applyMarkers sets LastSpot on the only open slot left in a band and Popular
// on open slots squeezed between two booked neighbours.
func applyMarkers(slots []model.TimeSlot, booked []bool) {
	openPerBand := map[Band]int{}
	for _, s := range slots {
		if s.Available {
			openPerBand[mustBand(s.StartTime)]++
		}
	}
	for i := range slots {
		slots[i].Popular = false
		slots[i].LastSpot = false
		if !slots[i].Available {
			continue
		}
		slots[i].LastSpot = openPerBand[mustBand(slots[i].StartTime)] == 1
		if i > 0 && i < len(slots)-1 && booked[i-1] && booked[i+1] {
			slots[i].Popular = true
		}
	}
}

// MergeAny collapses per-staff slots into one slot per start time for the
// "any available staff" choice: a time is open if at least one staff member
// is open, and the slot carries the first such staff id.
func MergeAny(perStaff [][]model.TimeSlot) []model.TimeSlot {
	type cell struct {
		slot     model.TimeSlot
		minutes  int
		allTaken bool
	}
	index := map[string]int{}
	var cells []cell
	for _, slots := range perStaff {
		for _, s := range slots {
			i, ok := index[s.StartTime]
			if !ok {
				m, _ := clock.ToMinutes(s.StartTime)
				merged := s
				merged.StaffID = model.AnyStaff
				merged.Available = false
				merged.ID = SlotID(s.Date, model.AnyStaff, m)
				index[s.StartTime] = len(cells)
				cells = append(cells, cell{slot: merged, minutes: m, allTaken: true})
				i = len(cells) - 1
			}
			if s.Available && !cells[i].slot.Available {
				cells[i].slot.Available = true
				cells[i].slot.StaffID = s.StaffID
			}
			if s.Available {
				cells[i].allTaken = false
			}
		}
	}
	// Per-staff grids share one layout, so first-seen order is already grid order
	// unless a later staff list introduced new labels; keep it sorted regardless.
	for i := 1; i < len(cells); i++ {
		for j := i; j > 0 && cells[j].minutes < cells[j-1].minutes; j-- {
			cells[j], cells[j-1] = cells[j-1], cells[j]
		}
	}
	out := make([]model.TimeSlot, len(cells))
	taken := make([]bool, len(cells))
	for i, c := range cells {
		out[i] = c.slot
		taken[i] = c.allTaken && !c.slot.Available
	}
	applyMarkers(out, taken)
	return out
}

// AnyAvailable reports whether some staff member is open at label.
func AnyAvailable(slots []model.TimeSlot, label string) (staffID string, ok bool) {
	want, err := clock.Normalize(label)
	if err != nil {
		return "", false
	}
	for _, s := range slots {
		if s.Available && s.StartTime == want {
			return s.StaffID, true
		}
	}
	return "", false
}
