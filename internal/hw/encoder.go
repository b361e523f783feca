package hw

import (
	"sync"

	"github.com/go-logr/logr"
)

// Encoder is a position sensor backed by one IME. Counts are scaled so the
// mechanism's full travel reads 0..127.
type Encoder struct {
	bus   Bus
	id    int
	scale float64
	log   logr.Logger

	mu   sync.Mutex
	last float64
}

func NewEncoder(bus Bus, id int, maxRevs float64, log logr.Logger) *Encoder {
	return &Encoder{
		bus:   bus,
		id:    id,
		scale: MaxPos / (maxRevs * CountsPerRevTorque),
		log:   log,
	}
}

// Position returns the scaled position. The motors are mounted so upward
// travel counts down, hence the sign flip. On a bus error the last good
// reading is returned.
func (e *Encoder) Position() float64 {
	counts, err := e.bus.IMEGet(e.id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.log.Error(err, "reading IME, using last position", "ime", e.id, "last", e.last)
		return e.last
	}
	e.last = e.scale * -float64(counts)
	return e.last
}

// Counts converts a scaled position back to raw IME counts.
func (e *Encoder) Counts(pos float64) int32 {
	return int32(-pos / e.scale)
}
