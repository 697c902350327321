package tdoa

// SpeedOfLight in meters/second, used to convert a TDoA in tag-clock
// ticks to a distance difference in meters.
const SpeedOfLight = 299792458.0

// MeasurementNoiseStdDev is the default per-measurement standard
// deviation reported to the estimator; the driver may override it at
// runtime via its stddev parameter (spec §6.5).
const MeasurementNoiseStdDev = 0.15

// Measurement is one TDoA observation ready for the state estimator.
type Measurement struct {
	AnchorIDs    [2]byte
	Positions    [2]Position
	DistanceDiff float64
	StdDev       float64
}

// EstimatorSink is the capability object the engine reports
// measurements through. It is injected via NewEngine and never baked into
// the engine's identity as a bare function pointer.
type EstimatorSink interface {
	EnqueueTDoA(Measurement)
}

// Engine ties together anchor storage, clock discipline, peer
// selection, and TDoA arithmetic. All mutation happens synchronously
// inside ProcessPacket/ProcessPacketFiltered; there is nothing to
// synchronize because a single radio task drives every call.
type Engine struct {
	storage *Storage
	Stats   Stats

	sink   EstimatorSink
	tsFreq float64

	matchingAlgorithm MatchingAlgorithm
	matchOffset       int
	seqScratch        []RemoteSeqEntry
}

// NewEngine constructs an engine over storage, reporting measurements
// to sink. tsFreq is the UWB timestamp counter frequency used to
// convert ticks to seconds (and, via SpeedOfLight, to meters).
func NewEngine(storage *Storage, nowMS int64, sink EstimatorSink, tsFreq float64, algo MatchingAlgorithm) *Engine {
	e := &Engine{
		storage:           storage,
		sink:              sink,
		tsFreq:            tsFreq,
		matchingAlgorithm: algo,
	}
	InitStats(&e.Stats, nowMS)
	return e
}

// Storage exposes the underlying anchor store, e.g. for the driver's
// position/id-list accessors.
func (e *Engine) Storage() *Storage {
	return e.storage
}

// GetAnchorCtxForPacketProcessing resolves (or creates) the context
// for anchorID and records a context hit/miss in Stats. This is the
// entry point the driver uses before calling ProcessPacket.
func (e *Engine) GetAnchorCtxForPacketProcessing(anchorID byte, nowMS int64) *AnchorContext {
	ctx, found := e.storage.GetOrCreate(anchorID, nowMS)
	if found {
		e.Stats.ContextHit.event()
	} else {
		e.Stats.ContextMiss.event()
	}
	return ctx
}

// updateClockCorrection folds a new (txAnchor, rxTag) sample into the
// anchor's clock estimator, comparing it against the anchor's
// previously stored (tx, rx) pair. It reports whether the sample was
// reliable; a first-ever packet from an anchor (no previous pair
// recorded) can never be reliable, since there is nothing to compare
// against yet.
func (e *Engine) updateClockCorrection(ctx *AnchorContext, txAnchor, rxTag uint64) bool {
	prevRx := ctx.RxTime()
	prevTx := ctx.TxTime()
	if prevRx == 0 || prevTx == 0 {
		return false
	}

	candidate, ok := CandidateFromPackets(txAnchor, prevTx, rxTag, prevRx)
	if !ok {
		return false
	}

	reliable := ctx.ClockCorrection().Update(candidate)
	if reliable {
		if ctx.ID() == e.Stats.anchorID {
			e.Stats.ClockCorrection = ctx.ClockCorrection().Correction()
		}
		e.Stats.ClockCorrectionCount.event()
	}
	return reliable
}

// calcTDoA computes the TDoA in tag-clock ticks between the peer
// (other) and the current anchor, per spec §4.3's formula: the
// tag-observed arrival gap minus the anchor-scheduled transmission
// gap, re-expressed in tag ticks via the current anchor's clock
// correction.
func calcTDoA(other, current *AnchorContext, txAnchor, rxTag uint64) int64 {
	tof, _ := current.GetRemoteTof(other.ID())
	remoteRx, _, _ := current.GetRemoteRx(other.ID())
	correction := current.ClockCorrection().Correction()

	otherRxTag := other.RxTime()

	deltaTxOtherToCurrent := int64(tof) + int64(maskedDelta(remoteRx, txAnchor))
	arrivalGap := int64(maskedDelta(otherRxTag, rxTag))

	return arrivalGap - int64(float64(deltaTxOtherToCurrent)*correction)
}

func (e *Engine) calcDistanceDiff(other, current *AnchorContext, txAnchor, rxTag uint64) float64 {
	tdoaTicks := calcTDoA(other, current, txAnchor, rxTag)
	return SpeedOfLight * float64(tdoaTicks) / e.tsFreq
}

func (e *Engine) enqueue(other, current *AnchorContext, distanceDiff float64) {
	otherPos, otherOK := other.Position()
	currentPos, currentOK := current.Position()
	if !otherOK || !currentOK {
		return
	}

	e.Stats.PacketsToEstimator.event()

	idA, idB := other.ID(), current.ID()
	if idA == e.Stats.anchorID && idB == e.Stats.remoteAnchorID {
		e.Stats.Tdoa = distanceDiff
	}
	if idB == e.Stats.anchorID && idA == e.Stats.remoteAnchorID {
		e.Stats.Tdoa = -distanceDiff
	}

	e.sink.EnqueueTDoA(Measurement{
		AnchorIDs:    [2]byte{idA, idB},
		Positions:    [2]Position{otherPos, currentPos},
		DistanceDiff: distanceDiff,
		StdDev:       MeasurementNoiseStdDev,
	})
}

// ProcessPacket runs the full pipeline for one packet from ctx's
// anchor: clock update, peer selection, TDoA arithmetic, and emission.
// It reports whether the clock sample was reliable — callers do not
// need to know whether a measurement was actually emitted, since a
// missing peer/position is an expected steady-state condition, not a
// caller-visible failure.
func (e *Engine) ProcessPacket(ctx *AnchorContext, txAnchor, rxTag uint64) bool {
	return e.ProcessPacketFiltered(ctx, txAnchor, rxTag, nil)
}

// ProcessPacketFiltered is ProcessPacket with excludeID, when non-nil,
// forbidden as the chosen peer.
func (e *Engine) ProcessPacketFiltered(ctx *AnchorContext, txAnchor, rxTag uint64, excludeID *byte) bool {
	timeIsGood := e.updateClockCorrection(ctx, txAnchor, rxTag)
	if !timeIsGood {
		return false
	}
	e.Stats.TimeIsGood.event()

	other := e.findSuitableAnchor(ctx, excludeID)
	if other == nil {
		return true
	}
	e.Stats.SuitableDataFound.event()

	distanceDiff := e.calcDistanceDiff(other, ctx, txAnchor, rxTag)
	e.enqueue(other, ctx, distanceDiff)
	return true
}
