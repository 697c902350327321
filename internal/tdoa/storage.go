package tdoa

// Validity windows, in milliseconds, for the various per-anchor caches.
const (
	RemoteDataValidityMS   = 30
	TimeOfFlightValidityMS = 2000
	PositionValidityMS     = 2000
	ActiveValidityMS       = 2000
)

// Position is an anchor's known location, valid for PositionValidityMS
// after TimestampMS.
type Position struct {
	X, Y, Z     float32
	TimestampMS int64
}

type remoteRxEntry struct {
	id        byte
	valid     bool
	rxTime    uint64
	seqNr     byte
	endOfLife int64
}

type remoteTofEntry struct {
	id        byte
	valid     bool
	tof       uint64
	endOfLife int64
}

// AnchorRecord holds everything the engine knows about one anchor. It
// is owned by Storage; callers never retain a pointer to it directly,
// only through an AnchorContext borrow.
type AnchorRecord struct {
	id           byte
	initialized  bool
	lastUpdateMS int64

	rxTime uint64
	txTime uint64
	seqNr  byte

	clock ClockCorrection

	position Position

	remoteRx  []remoteRxEntry
	remoteTof []remoteTofEntry
}

func (a *AnchorRecord) reset(id byte, remoteCapacity int) {
	*a = AnchorRecord{
		id:          id,
		initialized: true,
		remoteRx:    make([]remoteRxEntry, remoteCapacity),
		remoteTof:   make([]remoteTofEntry, remoteCapacity),
	}
}

// Storage is a fixed-capacity, linear-scan associative store of anchor
// records. Capacity is chosen at construction time — N_STORAGE anchor
// slots, each with an R-entry remote-rx and remote-tof cache — rather
// than compiled-in array sizes, since nothing here requires static
// allocation. When the store is full, the least-recently-updated slot
// is evicted and reseated for a new id.
type Storage struct {
	anchors        []AnchorRecord
	remoteCapacity int
}

// NewStorage creates a store with room for capacity anchors, each
// carrying remoteCapacity remote-rx and remote-tof entries.
func NewStorage(capacity, remoteCapacity int) *Storage {
	return &Storage{
		anchors:        make([]AnchorRecord, capacity),
		remoteCapacity: remoteCapacity,
	}
}

// AnchorContext is a short-lived borrow of one anchor record, paired
// with the timestamp of the packet being processed. It must never be
// retained across packets: validity windows are evaluated against the
// now snapshot taken at creation, not the wall clock at call time.
type AnchorContext struct {
	anchor *AnchorRecord
	now    int64
}

// Valid reports whether the context actually resolved to a record.
// GetOrCreate always returns a valid context; Get can return an
// invalid one when the anchor is unknown.
func (c *AnchorContext) Valid() bool {
	return c != nil && c.anchor != nil
}

// GetOrCreate returns the record for id, creating one if it does not
// exist. found is true when an existing record was reused; false when
// a fresh (possibly evicted) slot was seated for the id.
func (s *Storage) GetOrCreate(id byte, nowMS int64) (ctx *AnchorContext, found bool) {
	oldestUpdate := nowMS
	oldestSlot := 0
	firstFree := -1

	for i := range s.anchors {
		a := &s.anchors[i]
		if a.initialized {
			if a.id == id {
				return &AnchorContext{anchor: a, now: nowMS}, true
			}
			if a.lastUpdateMS < oldestUpdate {
				oldestUpdate = a.lastUpdateMS
				oldestSlot = i
			}
		} else if firstFree == -1 {
			firstFree = i
		}
	}

	slot := oldestSlot
	if firstFree != -1 {
		slot = firstFree
	}
	s.anchors[slot].reset(id, s.remoteCapacity)
	return &AnchorContext{anchor: &s.anchors[slot], now: nowMS}, false
}

// Get looks up id without creating a record. The returned context is
// invalid (ctx.Valid() == false) when id is unknown.
func (s *Storage) Get(id byte, nowMS int64) *AnchorContext {
	for i := range s.anchors {
		a := &s.anchors[i]
		if a.initialized && a.id == id {
			return &AnchorContext{anchor: a, now: nowMS}
		}
	}
	return &AnchorContext{now: nowMS}
}

// ListIDs appends up to max initialized anchor ids to dst and returns
// the result. Order is not meaningful.
func (s *Storage) ListIDs(dst []byte, max int) []byte {
	for i := range s.anchors {
		if len(dst) >= max {
			break
		}
		if s.anchors[i].initialized {
			dst = append(dst, s.anchors[i].id)
		}
	}
	return dst
}

// ListActiveIDs is ListIDs filtered to anchors updated within
// ActiveValidityMS of nowMS.
func (s *Storage) ListActiveIDs(dst []byte, max int, nowMS int64) []byte {
	expiry := nowMS - ActiveValidityMS
	for i := range s.anchors {
		if len(dst) >= max {
			break
		}
		a := &s.anchors[i]
		if a.initialized && a.lastUpdateMS > expiry {
			dst = append(dst, a.id)
		}
	}
	return dst
}

// IsInStorage reports whether id currently occupies a slot.
func (s *Storage) IsInStorage(id byte) bool {
	for i := range s.anchors {
		if s.anchors[i].initialized && s.anchors[i].id == id {
			return true
		}
	}
	return false
}

// --- AnchorContext accessors -------------------------------------------------

func (c *AnchorContext) ID() byte            { return c.anchor.id }
func (c *AnchorContext) RxTime() uint64      { return c.anchor.rxTime }
func (c *AnchorContext) TxTime() uint64      { return c.anchor.txTime }
func (c *AnchorContext) SeqNr() byte         { return c.anchor.seqNr }
func (c *AnchorContext) LastUpdateMS() int64 { return c.anchor.lastUpdateMS }
func (c *AnchorContext) Now() int64          { return c.now }

// ClockCorrection returns the mutable clock-correction estimator for
// this anchor, for the filter update in engine.go.
func (c *AnchorContext) ClockCorrection() *ClockCorrection {
	return &c.anchor.clock
}

// SetRxTxData records the timestamps of the most recently processed
// packet from this anchor and bumps its last-update time, which is
// what keeps it out of LRU eviction.
func (c *AnchorContext) SetRxTxData(rxTime, txTime uint64, seqNr byte) {
	c.anchor.rxTime = rxTime
	c.anchor.txTime = txTime
	c.anchor.seqNr = seqNr
	c.anchor.lastUpdateMS = c.now
}

// Position returns the anchor's last known position and whether it is
// still within PositionValidityMS of the context's now snapshot.
func (c *AnchorContext) Position() (Position, bool) {
	p := c.anchor.position
	if p.TimestampMS > c.now-PositionValidityMS {
		return p, true
	}
	return Position{}, false
}

// SetPosition records a new anchor position, stamped with the
// context's now snapshot.
func (c *AnchorContext) SetPosition(x, y, z float32) {
	c.anchor.position = Position{X: x, Y: y, Z: z, TimestampMS: c.now}
}

// SetRemoteRx records the anchor-clock arrival time of remoteID's most
// recent transmission, as observed by this anchor, valid for
// RemoteDataValidityMS.
func (c *AnchorContext) SetRemoteRx(remoteID byte, rxTime uint64, seqNr byte) {
	table := c.anchor.remoteRx
	idx := 0
	oldest := int64(1<<63 - 1)
	for i := range table {
		if table[i].valid && table[i].id == remoteID {
			idx = i
			oldest = -1 // force use of this slot
			break
		}
		if table[i].endOfLife < oldest {
			oldest = table[i].endOfLife
			idx = i
		}
	}
	table[idx] = remoteRxEntry{
		id:        remoteID,
		valid:     true,
		rxTime:    rxTime,
		seqNr:     seqNr,
		endOfLife: c.now + RemoteDataValidityMS,
	}
}

// GetRemoteRx returns the cached (rxTime, seqNr) pair for remoteID, if
// any entry exists and has not expired.
func (c *AnchorContext) GetRemoteRx(remoteID byte) (rxTime uint64, seqNr byte, ok bool) {
	for _, e := range c.anchor.remoteRx {
		if e.valid && e.id == remoteID {
			if e.endOfLife > c.now {
				return e.rxTime, e.seqNr, true
			}
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// RemoteSeqEntry is one row of the remote-sequence-number list used by
// the peer-matching algorithms.
type RemoteSeqEntry struct {
	ID    byte
	SeqNr byte
}

// ListRemoteSeq returns every non-expired remote-rx entry, in stable
// (table) order.
func (c *AnchorContext) ListRemoteSeq(dst []RemoteSeqEntry) []RemoteSeqEntry {
	for _, e := range c.anchor.remoteRx {
		if e.valid && e.endOfLife > c.now {
			dst = append(dst, RemoteSeqEntry{ID: e.id, SeqNr: e.seqNr})
		}
	}
	return dst
}

// SetRemoteTof records the anchor-clock time-of-flight between this
// anchor and remoteID, valid for TimeOfFlightValidityMS.
func (c *AnchorContext) SetRemoteTof(remoteID byte, tof uint64) {
	table := c.anchor.remoteTof
	idx := 0
	oldest := int64(1<<63 - 1)
	for i := range table {
		if table[i].valid && table[i].id == remoteID {
			idx = i
			oldest = -1
			break
		}
		if table[i].endOfLife < oldest {
			oldest = table[i].endOfLife
			idx = i
		}
	}
	table[idx] = remoteTofEntry{
		id:        remoteID,
		valid:     true,
		tof:       tof,
		endOfLife: c.now + TimeOfFlightValidityMS,
	}
}

// GetRemoteTof returns the cached time-of-flight to remoteID and
// whether it is still valid.
func (c *AnchorContext) GetRemoteTof(remoteID byte) (tof uint64, ok bool) {
	for _, e := range c.anchor.remoteTof {
		if e.valid && e.id == remoteID {
			if e.endOfLife > c.now {
				return e.tof, true
			}
			return 0, false
		}
	}
	return 0, false
}
