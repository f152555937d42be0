package availability

import (
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Band is a display grouping of slots. It carries no state of its own.
type Band string

const (
	Morning   Band = "Morning"
	Afternoon Band = "Afternoon"
	Evening   Band = "Evening"
)

var bandOrder = []Band{Morning, Afternoon, Evening}

func BandOfMinutes(minutes int) Band {
	h := ((minutes%clock.MinutesPerDay + clock.MinutesPerDay) % clock.MinutesPerDay) / 60
	switch {
	case h < 12:
		return Morning
	case h < 17:
		return Afternoon
	default:
		return Evening
	}
}

func BandOf(label string) (Band, error) {
	m, err := clock.ToMinutes(label)
	if err != nil {
		return "", err
	}
	return BandOfMinutes(m), nil
}

// mustBand is for labels produced by clock.ToLabel, which always parse.
func mustBand(label string) Band {
	b, err := BandOf(label)
	if err != nil {
		return Morning
	}
	return b
}

type BandGroup struct {
	Band  Band             `json:"band"`
	Slots []model.TimeSlot `json:"slots"`
}

// GroupByBand keeps slot order within each band and omits empty bands.
func GroupByBand(slots []model.TimeSlot) []BandGroup {
	byBand := map[Band][]model.TimeSlot{}
	for _, s := range slots {
		b := mustBand(s.StartTime)
		byBand[b] = append(byBand[b], s)
	}
	var groups []BandGroup
	for _, b := range bandOrder {
		if len(byBand[b]) == 0 {
			continue
		}
		groups = append(groups, BandGroup{Band: b, Slots: byBand[b]})
	}
	return groups
}
