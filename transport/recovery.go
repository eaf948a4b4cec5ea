package transport

import "time"

// RACK (time-based loss detection) combined with a packet-reordering
// threshold (FACK) and a probe timeout, per RFC 9002. A packet is
// declared lost once a packet sent sufficiently later has been
// acknowledged and either the reordering packet threshold or the
// reordering time threshold has elapsed since it was sent; the probe
// timer exists only to make progress when RACK itself has nothing newer
// to compare against (the tail loss case).
const (
	packetThreshold  = 3
	timeThresholdNum = 9
	timeThresholdDen = 8
	granularity      = time.Millisecond
	initialRTTDefault = 333 * time.Millisecond
	persistentCongestionThreshold = 3
	maxPTOBackoff = 1 << 5
)

type spaceRecovery struct {
	sent       *outgoingPacket
	sentTail   *outgoingPacket
	largestAckedPacket uint64
	hasLargestAcked    bool
	lossTime           time.Time
	lastAckElicitingSent time.Time
}

func (r *spaceRecovery) pushSent(op *outgoingPacket) {
	if r.sentTail == nil {
		r.sent = op
	} else {
		r.sentTail.next = op
	}
	r.sentTail = op
	op.next = nil
}

// lossRecovery is the loss detection and recovery engine a Conn drives
// (spec section 4.5). Congestion control proper is an external
// collaborator (congestionController); this type only decides which
// sent packets are acked or lost and maintains RTT/PTO state.
type lossRecovery struct {
	spaces [packetSpaceCount]spaceRecovery
	acked  [packetSpaceCount][]frame
	lost   [packetSpaceCount][]frame

	probes      int
	probeCount  int
	maxAckDelay time.Duration

	minRTT     time.Duration
	smoothedRTT time.Duration
	rttVar     time.Duration
	hasRTT     bool

	lossDetectionTimer time.Time

	cc congestionController
}

func (r *lossRecovery) init(now time.Time) {
	r.smoothedRTT = initialRTTDefault
	r.rttVar = initialRTTDefault / 2
	r.cc = newRenoCongestion()
}

// dropUnackedData discards all in-flight packets for a space without
// resending their frames, used when a packet number space's keys are
// discarded entirely (Initial dropped after Handshake, connection
// closing).
func (r *lossRecovery) dropUnackedData(space packetSpace) {
	sp := &r.spaces[space]
	for op := sp.sent; op != nil; op = op.next {
		if op.inFlight {
			r.cc.onDataInvalidated(int(op.size))
		}
	}
	*sp = spaceRecovery{}
	r.acked[space] = r.acked[space][:0]
	r.lost[space] = r.lost[space][:0]
	r.updateLossDetectionTimer()
}

// invalidateEarlyData removes the 0-RTT-tagged packets still in flight
// within space (only ever meaningful for the Application space) without
// touching any 1-RTT packets already sharing that space's sent list.
// Unlike dropUnackedData, which discards an entire space's state when its
// keys are dropped, this walks the list and only pulls is0RTT entries,
// since 0-RTT and 1-RTT share one packet number space (RFC 9000 section
// 12.3). Their frames are returned for the caller to requeue as 1-RTT.
func (r *lossRecovery) invalidateEarlyData(space packetSpace) []frame {
	sp := &r.spaces[space]
	var frames []frame
	var prev *outgoingPacket
	op := sp.sent
	for op != nil {
		next := op.next
		if !op.is0RTT {
			prev = op
			op = next
			continue
		}
		if op.inFlight {
			r.cc.onDataInvalidated(int(op.size))
		}
		frames = append(frames, op.frames...)
		if prev == nil {
			sp.sent = next
		} else {
			prev.next = next
		}
		if next == nil {
			sp.sentTail = prev
		}
		op = next
	}
	return frames
}

func (r *lossRecovery) onPacketSent(op *outgoingPacket, space packetSpace) {
	sp := &r.spaces[space]
	sp.pushSent(op)
	if op.inFlight {
		r.cc.onDataSent(int(op.size))
		if op.ackEliciting {
			sp.lastAckElicitingSent = op.timeSent
		}
	}
	r.updateLossDetectionTimer()
}

// onAckReceived processes a received ACK frame's range set against the
// sent-packet list for space: acked packets are moved to r.acked[space]
// for the caller to apply side effects via drainAcked, RTT samples are
// taken from the newly-acked largest packet, and RACK/FACK loss
// detection runs against the remaining in-flight packets.
func (r *lossRecovery) onAckReceived(ranges *rangeSet, ackDelay time.Duration, space packetSpace, now time.Time) {
	if ranges == nil {
		return
	}
	sp := &r.spaces[space]
	largest, ok := ranges.max()
	if !ok {
		return
	}
	newlyAckedLargest := !sp.hasLargestAcked || largest > sp.largestAckedPacket

	var prev *outgoingPacket
	op := sp.sent
	var largestAckedSent time.Time
	ackedAny := false
	for op != nil {
		next := op.next
		if ranges.contains(op.packetNumber) {
			if op.inFlight {
				unblocked := r.cc.onDataAcked(now, largest, int(op.size), r.smoothedRTT)
				_ = unblocked
			}
			if op.packetNumber == largest {
				largestAckedSent = op.timeSent
			}
			r.acked[space] = append(r.acked[space], op.frames...)
			ackedAny = true
			if prev == nil {
				sp.sent = next
			} else {
				prev.next = next
			}
			if next == nil {
				sp.sentTail = prev
			}
		} else {
			prev = op
		}
		op = next
	}
	if !ackedAny {
		return
	}
	if newlyAckedLargest {
		sp.largestAckedPacket = largest
		sp.hasLargestAcked = true
		if !largestAckedSent.IsZero() {
			r.updateRTT(now.Sub(largestAckedSent), ackDelay)
		}
	}
	r.probeCount = 0
	r.detectLostPackets(space, now)
	r.updateLossDetectionTimer()
}

func (r *lossRecovery) updateRTT(latest, ackDelay time.Duration) {
	if !r.hasRTT {
		r.minRTT = latest
		r.smoothedRTT = latest
		r.rttVar = latest / 2
		r.hasRTT = true
		return
	}
	if latest < r.minRTT {
		r.minRTT = latest
	}
	adjusted := latest
	if adjusted > r.minRTT && ackDelay > 0 {
		if adjusted-r.minRTT > ackDelay {
			adjusted -= ackDelay
		}
	}
	if r.rttVar < 0 {
		r.rttVar = 0
	}
	diff := r.smoothedRTT - adjusted
	if diff < 0 {
		diff = -diff
	}
	r.rttVar = (r.rttVar*3 + diff) / 4
	r.smoothedRTT = (r.smoothedRTT*7 + adjusted) / 8
}

// detectLostPackets walks the remaining sent list for space and declares
// lost every packet numbered at or below the largest acked one that is
// either packetThreshold or more packets behind it, or was sent at least
// timeThreshold*rtt before now.
func (r *lossRecovery) detectLostPackets(space packetSpace, now time.Time) {
	sp := &r.spaces[space]
	if !sp.hasLargestAcked {
		return
	}
	lossDelay := (r.rttTimeThreshold() * timeThresholdNum) / timeThresholdDen
	if lossDelay < granularity {
		lossDelay = granularity
	}
	lossTimeCutoff := now.Add(-lossDelay)
	sp.lossTime = time.Time{}

	var prev *outgoingPacket
	op := sp.sent
	persistentCongestionCandidates := 0
	var lostSize int
	var lastLargestLost uint64
	for op != nil {
		next := op.next
		if op.packetNumber > sp.largestAckedPacket {
			prev = op
			op = next
			continue
		}
		lostByTime := op.timeSent.Before(lossTimeCutoff) || op.timeSent.Equal(lossTimeCutoff)
		lostByPacket := sp.largestAckedPacket >= packetThreshold && op.packetNumber <= sp.largestAckedPacket-packetThreshold
		if lostByTime || lostByPacket {
			r.lost[space] = append(r.lost[space], op.frames...)
			if op.inFlight {
				lostSize += int(op.size)
				persistentCongestionCandidates++
				lastLargestLost = op.packetNumber
			}
			if prev == nil {
				sp.sent = next
			} else {
				prev.next = next
			}
			if next == nil {
				sp.sentTail = prev
			}
		} else {
			if op.inFlight {
				due := op.timeSent.Add(lossDelay)
				if sp.lossTime.IsZero() || due.Before(sp.lossTime) {
					sp.lossTime = due
				}
			}
			prev = op
		}
		op = next
	}
	if lostSize > 0 {
		persistent := persistentCongestionCandidates >= persistentCongestionThreshold
		r.cc.onDataLost(lastLargestLost, sp.largestAckedPacket, lostSize, persistent)
	}
}

func (r *lossRecovery) rttTimeThreshold() time.Duration {
	if r.smoothedRTT+4*r.rttVar > r.minRTT {
		return r.smoothedRTT + 4*r.rttVar
	}
	return r.minRTT
}

// drainAcked calls fn for each frame newly acked in space since the last
// call, then clears the list.
func (r *lossRecovery) drainAcked(space packetSpace, fn func(frame)) {
	for _, f := range r.acked[space] {
		fn(f)
	}
	r.acked[space] = r.acked[space][:0]
}

// drainLost calls fn for each frame newly declared lost in space since
// the last call, then clears the list.
func (r *lossRecovery) drainLost(space packetSpace, fn func(frame)) {
	for _, f := range r.lost[space] {
		fn(f)
	}
	r.lost[space] = r.lost[space][:0]
}

// probeTimeout computes the current PTO duration (RFC 9002 section
// 6.2.1), doubled for each consecutive unanswered probe.
func (r *lossRecovery) probeTimeout() time.Duration {
	pto := r.smoothedRTT + maxDuration(4*r.rttVar, granularity) + r.maxAckDelay
	backoff := time.Duration(1)
	for i := 0; i < r.probeCount && backoff < maxPTOBackoff; i++ {
		backoff *= 2
	}
	return pto * backoff
}

func (r *lossRecovery) updateLossDetectionTimer() {
	earliestLoss := time.Time{}
	anyInFlight := false
	for i := range r.spaces {
		sp := &r.spaces[i]
		if !sp.lossTime.IsZero() && (earliestLoss.IsZero() || sp.lossTime.Before(earliestLoss)) {
			earliestLoss = sp.lossTime
		}
		for op := sp.sent; op != nil; op = op.next {
			if op.inFlight {
				anyInFlight = true
			}
		}
	}
	if !earliestLoss.IsZero() {
		r.lossDetectionTimer = earliestLoss
		return
	}
	if !anyInFlight {
		r.lossDetectionTimer = time.Time{}
		return
	}
	var last time.Time
	for i := range r.spaces {
		sp := &r.spaces[i]
		if !sp.lastAckElicitingSent.IsZero() && sp.lastAckElicitingSent.After(last) {
			last = sp.lastAckElicitingSent
		}
	}
	if last.IsZero() {
		r.lossDetectionTimer = time.Time{}
		return
	}
	r.lossDetectionTimer = last.Add(r.probeTimeout())
}

// onLossDetectionTimeout fires either RACK time-threshold loss detection
// (if a loss timer is pending) or a PTO probe (schedule up to two probe
// packets and back off), per RFC 9002 section 6.2.
func (r *lossRecovery) onLossDetectionTimeout(now time.Time) {
	if r.lossDetectionTimer.IsZero() || now.Before(r.lossDetectionTimer) {
		return
	}
	anyLossTime := false
	for i := range r.spaces {
		sp := &r.spaces[i]
		if !sp.lossTime.IsZero() {
			anyLossTime = true
			r.detectLostPackets(packetSpace(i), now)
		}
	}
	if !anyLossTime {
		r.probeCount++
		r.probes += 2
	}
	r.updateLossDetectionTimer()
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
