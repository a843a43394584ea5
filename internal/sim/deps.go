package sim

import (
	"math/rand"
	"time"

	"puppet-arena/server/internal/telemetry"
	"puppet-arena/server/logging"
)

// Deps carries shared infrastructure dependencies required by the engine.
type Deps struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	RNG       *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.Discard()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Clock == nil {
		d.Clock = logging.ClockFunc(time.Now)
	}
	if d.RNG == nil {
		d.RNG = rand.New(rand.NewSource(d.Clock.Now().UnixNano()))
	}
	return d
}
