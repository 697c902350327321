// Package estimator defines the boundary between the TDoA engine and
// the downstream state estimator. The engine only ever sees the Sink
// interface: it enqueues measurements without an ack and never learns
// whether the estimator kept up.
package estimator

import (
	"log"
	"time"
)

// TDoAMeasurement is one pairwise TDoA observation, mirroring the
// engine's tdoa.Measurement shape without importing the tdoa package
// (the estimator boundary is a Non-goal collaborator, spec §1).
type TDoAMeasurement struct {
	AnchorIDs        [2]byte
	AnchorPositions  [2][3]float32
	DistanceDiff     float64
	StdDevMeter      float64
	EnqueuedUnixNano int64
}

// HeightMeasurement is an absolute-height observation, emitted
// alongside every TDoA measurement when the deck is configured for
// 2-D operation (spec §6.4).
type HeightMeasurement struct {
	Height           float64
	StdDevMeter      float64
	EnqueuedUnixNano int64
}

// HeightStdDev is fixed at 1e-4, per spec §6.4; unlike the TDoA
// std deviation it is not overridable at runtime.
const HeightStdDev = 1e-4

// DropStats is satisfied by anything that wants to count measurements
// dropped when the estimator queue is full.
type DropStats interface {
	AddDroppedTDoA()
	AddDroppedHeight()
}

// Sink is what the engine and driver enqueue into. Overflow is the
// estimator's concern, never the caller's (spec §5, "Shared
// resources"): Enqueue* never blocks and never returns an error.
type Sink interface {
	EnqueueTDoA(TDoAMeasurement)
	EnqueueHeight(HeightMeasurement)
}

// BoundedQueue is a non-blocking, bounded Sink: a full queue drops the
// newest measurement and counts the drop, rather than blocking the
// radio task that is feeding it.
type BoundedQueue struct {
	tdoa   chan TDoAMeasurement
	height chan HeightMeasurement
	stats  DropStats

	logInterval time.Duration
}

// NewBoundedQueue creates a queue with room for capacity measurements
// of each kind. logInterval is stored on the queue but the queue never
// logs; periodic drop summaries come from RunDropLogger, which takes
// its own interval.
func NewBoundedQueue(capacity int, stats DropStats, logInterval time.Duration) *BoundedQueue {
	return &BoundedQueue{
		tdoa:        make(chan TDoAMeasurement, capacity),
		height:      make(chan HeightMeasurement, capacity),
		stats:       stats,
		logInterval: logInterval,
	}
}

// EnqueueTDoA implements Sink.
func (q *BoundedQueue) EnqueueTDoA(m TDoAMeasurement) {
	select {
	case q.tdoa <- m:
	default:
		q.stats.AddDroppedTDoA()
	}
}

// EnqueueHeight implements Sink.
func (q *BoundedQueue) EnqueueHeight(m HeightMeasurement) {
	select {
	case q.height <- m:
	default:
		q.stats.AddDroppedHeight()
	}
}

// TDoAChan exposes the receive side for the estimator consumer.
func (q *BoundedQueue) TDoAChan() <-chan TDoAMeasurement { return q.tdoa }

// HeightChan exposes the receive side for the estimator consumer.
func (q *BoundedQueue) HeightChan() <-chan HeightMeasurement { return q.height }

// RunDropLogger periodically logs how many measurements were dropped
// since the last tick, mirroring the forwarder's burst-summary
// logging so a saturated queue produces one line per interval instead
// of one per drop.
func RunDropLogger(done <-chan struct{}, interval time.Duration, dropped func() (tdoa, height int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			tdoa, height := dropped()
			if tdoa > 0 || height > 0 {
				log.Printf("estimator queue dropped %d tdoa, %d height measurements in the last %s", tdoa, height, interval)
			}
		}
	}
}
