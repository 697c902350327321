package radio

import (
	"fmt"

	"github.com/eddyswens/crazyflie-firmware/internal/config"
	"github.com/eddyswens/crazyflie-firmware/internal/estimator"
	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

// isConsecutiveIds reports whether current follows previous around the
// 8-anchor ring, used to decide which telemetry slots to populate:
// spec §6.5 only logs distance-diff and remote distance for sequential
// anchor pairs.
func isConsecutiveIds(previous, current byte) bool {
	return (previous+1)&0x07 == current
}

type anchorHistory struct {
	statusTimeoutMS int64
}

// Driver is the single-threaded event-dispatcher boundary between a
// Radio and the TDoA engine. It owns LPP TX pacing, the ranging-state
// bitmap, and the telemetry surfaces described in spec §6.5-§6.6.
type Driver struct {
	engine *tdoa.Engine
	radio  Radio
	sink   estimator.Sink

	anchorAddress [tdoa.NumAnchors]uint64

	previousAnchor byte
	history        [tdoa.NumAnchors]anchorHistory
	rangingState   uint16
	rangingOk      bool
	nowMS          int64

	anchorStatusTimeoutMS int64

	lppQueue       LppQueue
	lppRetryCount  int
	lppSendTimeout int

	stdDev      float64
	twoDHeight  float64
	twoDEnabled bool

	distanceDiffLog    [tdoa.NumAnchors]float32
	clockCorrectionLog [tdoa.NumAnchors]float32
	anchorDistanceLog  [tdoa.NumAnchors]uint16
}

// NewDriver wires a Driver over engine and radio, publishing
// measurements to sink and taking its tunable parameters from cfg.
func NewDriver(engine *tdoa.Engine, r Radio, sink estimator.Sink, cfg *config.TuningConfig) *Driver {
	d := &Driver{
		engine:                engine,
		radio:                 r,
		sink:                  sink,
		anchorAddress:         DefaultAnchorAddress,
		stdDev:                cfg.GetStdDev(),
		lppSendTimeout:        cfg.GetLPPSendTimeoutEvents(),
		anchorStatusTimeoutMS: cfg.GetAnchorStatusTimeoutMS(),
	}
	d.twoDHeight, d.twoDEnabled = cfg.GetTwoDPositionHeight()
	return d
}

// AttachEngine binds the TDoA engine a driver dispatches packets into.
// It exists because the engine's estimator sink (NewEstimatorSink)
// closes over the driver itself, so callers outside this package must
// construct the driver, build the sink, build the engine, then attach
// it, rather than supplying it to NewDriver up front.
func (d *Driver) AttachEngine(e *tdoa.Engine) {
	d.engine = e
}

// SetAnchorAddresses overrides the default MAC address table, for a
// deployment on a non-default PAN.
func (d *Driver) SetAnchorAddresses(addrs [tdoa.NumAnchors]uint64) {
	d.anchorAddress = addrs
}

// SetStdDev overrides the per-measurement standard deviation reported
// to the estimator, matching the runtime-tunable `stddev` parameter
// (spec §6.5).
func (d *Driver) SetStdDev(v float64) {
	d.stdDev = v
}

// QueueLPPShort enqueues a short packet for transmission the next time
// the driver has an opportunity to send to its destination anchor. Any
// packet not yet sent is replaced.
func (d *Driver) QueueLPPShort(p ShortPacket) {
	d.lppQueue.Push(p)
	d.lppRetryCount = 0
}

// OnEvent dispatches one radio event, matching spec §4.5. now is the
// tag's own millisecond clock, independent of anchor-clock timestamps.
func (d *Driver) OnEvent(event Event, nowMS int64) {
	d.nowMS = nowMS

	switch event {
	case EventPacketReceived:
		d.handlePacketReceived(nowMS)
	case EventReceiveTimeout, EventReceiveFailed, EventTimeout:
		d.radio.StartReceive()
		d.tickLppRetry()
	case EventPacketSent:
		// The radio returns to receive automatically; nothing to do.
	default:
		panic(fmt.Sprintf("radio: unknown event %v", event))
	}

	d.rebuildRangingState(nowMS)
}

func (d *Driver) handlePacketReceived(nowMS int64) {
	pkt, ok := d.radio.LastReceivedPacket()
	if !ok {
		d.radio.StartReceive()
		d.tickLppRetry()
		return
	}

	rp, err := tdoa.DecodeRangePacket(pkt.Payload)
	if err != nil || rp.Type != tdoa.PacketTypeTDoA2 {
		d.radio.StartReceive()
		d.tickLppRetry()
		return
	}

	anchorID, ok := anchorIDForAddress(d.anchorAddress, pkt.SourceAddress)
	if !ok {
		d.radio.StartReceive()
		d.tickLppRetry()
		return
	}

	lppSent := d.trySendQueuedLPP(anchorID)
	if !lppSent {
		d.radio.StartReceive()
	}

	rxTag := pkt.ArrivalTimestamp
	txAnchor := rp.Timestamps[anchorID]
	seqNr := rp.SequenceNrs[anchorID]

	ctx := d.engine.GetAnchorCtxForPacketProcessing(anchorID, nowMS)
	d.updateRemoteData(ctx, rp, anchorID)
	d.engine.ProcessPacket(ctx, txAnchor, rxTag)
	ctx.SetRxTxData(rxTag, txAnchor, seqNr)

	d.clockCorrectionLog[anchorID] = float32(ctx.ClockCorrection().Correction())

	if pos, ok := tdoa.DecodeLPPShortPacket(rp.LPP); ok {
		ctx.SetPosition(pos.X, pos.Y, pos.Z)
	}

	d.previousAnchor = anchorID
	d.history[anchorID].statusTimeoutMS = nowMS + d.anchorStatusTimeoutMS
	d.rangingOk = true

	if !lppSent {
		d.tickLppRetry()
	}
}

// trySendQueuedLPP transmits the queued short packet if it targets
// anchorID and removes it from the queue; a packet for another anchor
// is left pending for a future match.
func (d *Driver) trySendQueuedLPP(anchorID byte) bool {
	pending, has := d.lppQueue.Peek()
	if !has || pending.Dest != anchorID {
		return false
	}
	d.radio.Transmit(d.anchorAddress[anchorID], pending.Encode())
	d.lppQueue.Pop()
	d.lppRetryCount = 0
	return true
}

func (d *Driver) tickLppRetry() {
	if _, has := d.lppQueue.Peek(); !has {
		return
	}
	d.lppRetryCount++
	if d.lppRetryCount >= d.lppSendTimeout {
		d.lppQueue.Pop()
		d.lppRetryCount = 0
	}
}

// updateRemoteData folds every other anchor's self-reported rx time
// and TOF, carried inside this range packet, into anchorID's context
// (spec §4.5, "updateRemoteData").
func (d *Driver) updateRemoteData(ctx *tdoa.AnchorContext, rp tdoa.RangePacket, anchorID byte) {
	for i := byte(0); i < tdoa.NumAnchors; i++ {
		if i == anchorID {
			continue
		}
		if rp.Timestamps[i] != 0 {
			ctx.SetRemoteRx(i, rp.Timestamps[i], rp.SequenceNrs[i])
		}
		if rp.Distances[i] != 0 {
			ctx.SetRemoteTof(i, uint64(rp.Distances[i]))
			if isConsecutiveIds(d.previousAnchor, anchorID) {
				d.anchorDistanceLog[anchorID] = rp.Distances[d.previousAnchor]
			}
		}
	}
}

func (d *Driver) rebuildRangingState(nowMS int64) {
	var state uint16
	for a := 0; a < tdoa.NumAnchors; a++ {
		if nowMS < d.history[a].statusTimeoutMS {
			state |= 1 << uint(a)
		}
	}
	d.rangingState = state
}

// RangingState returns the current per-anchor activity bitmap, bit a
// set iff anchor a was heard within the anchor-status timeout.
func (d *Driver) RangingState() uint16 {
	return d.rangingState
}

// IsRangingOk latches true after the first successfully processed
// packet and never returns to false (spec §7).
func (d *Driver) IsRangingOk() bool {
	return d.rangingOk
}

// GetAnchorPosition returns the surveyed position of anchorID, if
// known and not expired, as of the driver's last observed event time.
func (d *Driver) GetAnchorPosition(anchorID byte) (tdoa.Position, bool) {
	ctx := d.engine.Storage().Get(anchorID, d.nowMS)
	if !ctx.Valid() {
		return tdoa.Position{}, false
	}
	return ctx.Position()
}

// GetAnchorIDList returns up to max known anchor ids.
func (d *Driver) GetAnchorIDList(max int) []byte {
	return d.engine.Storage().ListIDs(nil, max)
}

// GetActiveAnchorIDList returns up to max anchor ids updated within
// the storage layer's activity window as of the driver's last observed
// event time.
func (d *Driver) GetActiveAnchorIDList(max int) []byte {
	return d.engine.Storage().ListActiveIDs(nil, max, d.nowMS)
}

// DistanceDiffLog returns the per-anchor logged distance-diff values
// (populated only for sequential anchor pairs, spec §6.5).
func (d *Driver) DistanceDiffLog() [tdoa.NumAnchors]float32 { return d.distanceDiffLog }

// ClockCorrectionLog returns the per-anchor logged clock-correction
// values.
func (d *Driver) ClockCorrectionLog() [tdoa.NumAnchors]float32 { return d.clockCorrectionLog }

// AnchorDistanceLog returns the per-anchor logged remote-distance
// values (populated only for sequential anchor pairs).
func (d *Driver) AnchorDistanceLog() [tdoa.NumAnchors]uint16 { return d.anchorDistanceLog }

// EstimatorSink adapts the engine's tdoa.EstimatorSink callback into
// the driver's own std-dev override and 2-D height injection (spec
// §6.4-§6.5). Construct one per Driver and pass it to tdoa.NewEngine.
type EstimatorSink struct {
	driver *Driver
}

// NewEstimatorSink returns the capability object the engine calls back
// through; it must be created before the engine and installed via
// tdoa.NewEngine's sink argument.
func NewEstimatorSink(d *Driver) *EstimatorSink {
	return &EstimatorSink{driver: d}
}

// EnqueueTDoA implements tdoa.EstimatorSink.
func (s *EstimatorSink) EnqueueTDoA(m tdoa.Measurement) {
	d := s.driver
	m.StdDev = d.stdDev

	d.sink.EnqueueTDoA(estimator.TDoAMeasurement{
		AnchorIDs: m.AnchorIDs,
		AnchorPositions: [2][3]float32{
			{m.Positions[0].X, m.Positions[0].Y, m.Positions[0].Z},
			{m.Positions[1].X, m.Positions[1].Y, m.Positions[1].Z},
		},
		DistanceDiff: m.DistanceDiff,
		StdDevMeter:  m.StdDev,
	})

	if d.twoDEnabled {
		d.sink.EnqueueHeight(estimator.HeightMeasurement{
			Height:      d.twoDHeight,
			StdDevMeter: estimator.HeightStdDev,
		})
	}

	idA, idB := m.AnchorIDs[0], m.AnchorIDs[1]
	if isConsecutiveIds(idA, idB) {
		d.distanceDiffLog[idB] = float32(m.DistanceDiff)
	}
}
