package snapshot

import (
	"sync"

	"github.com/rs/zerolog"
)

// queueDepth bounds the publisher's internal channel. A slow/gone
// consumer never blocks the simulator: once the queue is full, the
// oldest unread snapshot is dropped and the newest one is kept, which is
// exactly the "collapsing/coalescing by the consumer is permitted"
// allowance in spec §5.
const queueDepth = 4

// Publisher rate-limits snapshot emission by the race clock (not wall
// clock) and fans each published RaceState out, non-blocking, to any
// attached subscriber. It is a no-op sender with zero subscribers.
//
// Grounded on teacher's strategy/rate_limiter.go token-bucket shape,
// re-keyed to "race seconds since last emission" instead of wall time.
type Publisher struct {
	maxFreq float64

	mu           sync.Mutex
	subscribers  []chan RaceState
	lastEmitT    float64
	haveEmitted  bool
	dropWarned   bool
	logger       zerolog.Logger
}

// NewPublisher builds a Publisher emitting at most maxFreq RaceStates per
// race-second.
func NewPublisher(maxFreq float64, logger zerolog.Logger) *Publisher {
	if maxFreq <= 0 {
		maxFreq = MaxGUIUpdateFrequency
	}
	return &Publisher{maxFreq: maxFreq, logger: logger}
}

// Subscribe attaches a new consumer channel. The channel is closed when
// the publisher is closed.
func (p *Publisher) Subscribe() <-chan RaceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan RaceState, queueDepth)
	p.subscribers = append(p.subscribers, ch)
	return ch
}

// Publish emits state if at least 1/maxFreq race-seconds have elapsed
// since the last emission (or this is the first emission). Sends are
// non-blocking: a full subscriber channel has its oldest entry evicted
// to make room, never stalling the caller.
func (p *Publisher) Publish(tRace float64, state RaceState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveEmitted && tRace-p.lastEmitT < 1.0/p.maxFreq {
		return
	}
	p.lastEmitT = tRace
	p.haveEmitted = true
	p.sendLocked(state)
}

// PublishFinal force-emits state regardless of the rate limit, for the
// single terminal snapshot of a real-time run.
func (p *Publisher) PublishFinal(state RaceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendLocked(state)
}

func (p *Publisher) sendLocked(state RaceState) {
	for _, ch := range p.subscribers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
				if !p.dropWarned {
					p.logger.Warn().Msg("snapshot subscriber not keeping up, dropping frames")
					p.dropWarned = true
				}
			}
		}
	}
}

// Close closes every subscriber channel. The publisher must not be used
// afterwards.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
}
