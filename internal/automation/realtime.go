package automation

import (
	"sync"

	"github.com/dawsched/core/internal/bus"
	"github.com/dawsched/core/internal/capability"
	"github.com/dawsched/core/internal/model"
)

// InstrumentLookup resolves a live instrument handle by id, mirroring the
// registry the content scheduler already consults (§6).
type InstrumentLookup func(instrumentID string) (capability.Instrument, bool)

type activeLanes struct {
	patternID string
	lanes     []Lane
}

// Realtime drives the §4.7 "Real-time CC lane automation" mode: on every
// transport scheduler_event it evaluates each active (instrument, lanes)
// pair at the tick's step and applies the mapped parameters.
type Realtime struct {
	b            *bus.Bus
	ticksPerStep int
	ccDefaults   map[uint8]float64
	lookup       InstrumentLookup

	mu     sync.Mutex
	active map[string]activeLanes // instrument_id -> lanes
}

// NewRealtime subscribes to b's scheduler_event topic immediately.
func NewRealtime(b *bus.Bus, ticksPerStep int, ccDefaults map[uint8]float64, lookup InstrumentLookup) *Realtime {
	r := &Realtime{
		b:            b,
		ticksPerStep: ticksPerStep,
		ccDefaults:   ccDefaults,
		lookup:       lookup,
		active:       make(map[string]activeLanes),
	}
	b.Subscribe(bus.TopicSchedulerEvent, func(payload any) {
		ev, ok := payload.(bus.SchedulerEvent)
		if !ok {
			return
		}
		r.onTick(ev)
	})
	return r
}

// Start registers instrumentID's lanes for real-time evaluation, filtering
// to lanes with at least one point (§4.7 "Start/stop").
func (r *Realtime) Start(instrumentID, patternID string, lanes []Lane) {
	filtered := WithPoints(lanes)
	if len(filtered) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[instrumentID] = activeLanes{patternID: patternID, lanes: filtered}
}

// Stop deregisters a single instrument's real-time automation, e.g. before
// a partial reschedule of just that instrument (§4.7).
func (r *Realtime) Stop(instrumentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, instrumentID)
}

// StopAll deregisters every active lane set — called on transport stop,
// pause, and full reschedule (§4.7).
func (r *Realtime) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[string]activeLanes)
}

func (r *Realtime) onTick(ev bus.SchedulerEvent) {
	r.mu.Lock()
	snapshot := make(map[string]activeLanes, len(r.active))
	for id, al := range r.active {
		snapshot[id] = al
	}
	r.mu.Unlock()

	step := float64(ev.Tick) / float64(r.ticksPerStep)

	for instrumentID, al := range snapshot {
		inst, ok := r.lookup(instrumentID)
		if !ok {
			continue
		}
		params := make(map[string]float64)
		for _, lane := range al.lanes {
			cc := lane.CCNumber()
			name, known := model.CCParameterNames[cc]
			if !known {
				continue
			}
			sl, isStatic := lane.(*StaticLane)
			var raw float64
			if isStatic && sl.IsPastLastPoint(step) {
				raw = r.ccDefaults[cc]
			} else if v, has := lane.GetValueAt(step); has {
				raw = v
			} else {
				raw = r.ccDefaults[cc]
			}
			params[name] = model.MapCCValue(cc, raw)
		}
		if len(params) > 0 {
			inst.ApplyAutomation(params, ev.Time)
		}
	}
}
