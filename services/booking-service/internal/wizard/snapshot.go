package wizard

import (
	"fmt"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Snapshot is the serializable form of a Wizard.
type Snapshot struct {
	Step       Step            `json:"step"`
	StepName   string          `json:"step_name"`
	Draft      Draft           `json:"draft"`
	Missing    []string        `json:"missing,omitempty"`
	CanAdvance bool            `json:"can_advance"`
	Finalized  bool            `json:"finalized"`
	Services   []model.Service `json:"services,omitempty"`
}

func (w Wizard) Snapshot() Snapshot {
	services := make([]model.Service, len(w.services))
	copy(services, w.services)
	return Snapshot{
		Step:       w.step,
		StepName:   w.step.String(),
		Draft:      w.draft,
		Missing:    w.Missing(),
		CanAdvance: w.CanAdvance(),
		Finalized:  w.finalized,
		Services:   services,
	}
}

// Restore rebuilds a Wizard from a snapshot. Derived fields are recomputed.
func Restore(s Snapshot) (Wizard, error) {
	if !s.Step.valid() {
		return Wizard{}, fmt.Errorf("restore wizard: invalid step %d: %w", int(s.Step), model.ErrInvalidRequest)
	}
	return Wizard{
		step:      s.Step,
		draft:     s.Draft,
		services:  s.Services,
		finalized: s.Finalized,
	}, nil
}
