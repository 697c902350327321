package tdoa

// MatchingAlgorithm selects how a peer anchor is chosen for TDoA
// pairing. Implemented as a tagged variant dispatched at the selection
// site, not as an interface with dynamic dispatch — there are exactly
// two algorithms and neither carries state beyond the engine itself.
type MatchingAlgorithm int

const (
	MatchingNone MatchingAlgorithm = iota
	MatchingRandom
	MatchingYoungest
)

// findSuitableAnchor is the entry point used by ProcessPacketFiltered.
// Its precondition — a converged clock correction on the current
// anchor — guards both algorithms, since neither can compute a
// meaningful TDoA before that.
func (e *Engine) findSuitableAnchor(ctx *AnchorContext, exclude *byte) *AnchorContext {
	if ctx.ClockCorrection().Correction() <= 0.0 {
		return nil
	}

	switch e.matchingAlgorithm {
	case MatchingRandom:
		return e.matchRandomAnchor(ctx, exclude)
	case MatchingYoungest:
		return e.matchYoungestAnchor(ctx, exclude)
	default:
		return nil
	}
}

// matchRandomAnchor walks the current anchor's remote-sequence list
// starting from a per-engine offset that advances on every call, so
// repeated calls with an unchanged candidate set don't always pick the
// same peer. It returns the first candidate whose self-reported
// sequence number matches what the current anchor last heard from it
// (confirming the observation is fresh) and for which a time-of-flight
// is cached.
func (e *Engine) matchRandomAnchor(ctx *AnchorContext, exclude *byte) *AnchorContext {
	e.matchOffset++

	e.seqScratch = ctx.ListRemoteSeq(e.seqScratch[:0])
	remoteCount := len(e.seqScratch)
	if remoteCount == 0 {
		return nil
	}

	for i := 0; i < remoteCount; i++ {
		index := (e.matchOffset + i) % remoteCount
		candidate := e.seqScratch[index]
		if exclude != nil && *exclude == candidate.ID {
			continue
		}

		otherCtx, _ := e.storage.GetOrCreate(candidate.ID, ctx.Now())
		if candidate.SeqNr != otherCtx.SeqNr() {
			continue
		}
		if _, ok := ctx.GetRemoteTof(candidate.ID); !ok {
			continue
		}
		return otherCtx
	}
	return nil
}

// matchYoungestAnchor scans every candidate and returns the one with
// the most recent last-update time, preferring the freshest available
// observation over an arbitrary or round-robin one.
func (e *Engine) matchYoungestAnchor(ctx *AnchorContext, exclude *byte) *AnchorContext {
	e.seqScratch = ctx.ListRemoteSeq(e.seqScratch[:0])

	var best *AnchorContext
	var bestUpdate int64 = -1

	for _, candidate := range e.seqScratch {
		if exclude != nil && *exclude == candidate.ID {
			continue
		}
		if _, ok := ctx.GetRemoteTof(candidate.ID); !ok {
			continue
		}
		otherCtx, _ := e.storage.GetOrCreate(candidate.ID, ctx.Now())
		if candidate.SeqNr != otherCtx.SeqNr() {
			continue
		}
		if otherCtx.LastUpdateMS() > bestUpdate {
			bestUpdate = otherCtx.LastUpdateMS()
			best = otherCtx
		}
	}
	return best
}
