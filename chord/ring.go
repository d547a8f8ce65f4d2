package chord

import (
	"fmt"
	"math/big"
	"sort"
)

// Peer is a single ring member: its address and the ring identifier
// derived from that address.
type Peer struct {
	Address string
	ID      *big.Int
}

// RingView is an immutable, per-node snapshot of ring membership: self
// ID, predecessor, successor, and finger table. It is built once at
// startup from a static peer list and never mutated afterward, so it
// is safe to read from multiple goroutines without synchronization.
type RingView struct {
	selfAddress string
	selfID      *big.Int
	predecessor Peer
	successor   Peer
	fingers     []Peer
}

// NewRingView builds the ring view for selfAddress given the full peer
// list (which may contain self, duplicates, or be empty). It fails if
// selfAddress does not end up in the deduplicated ring, which can only
// happen from a caller bug.
func NewRingView(selfAddress string, peers []string) (*RingView, error) {
	ring, err := buildSortedRing(selfAddress, peers)
	if err != nil {
		return nil, err
	}

	selfIndex := -1
	for i, p := range ring {
		if p.Address == selfAddress {
			selfIndex = i
			break
		}
	}
	if selfIndex == -1 {
		return nil, fmt.Errorf("chord: self address %q not found in ring", selfAddress)
	}

	n := len(ring)
	pred := ring[((selfIndex-1)%n+n)%n]
	succ := ring[(selfIndex+1)%n]

	v := &RingView{
		selfAddress: selfAddress,
		selfID:      ring[selfIndex].ID,
		predecessor: pred,
		successor:   succ,
	}
	v.fingers = buildFingerTable(v.selfID, ring)
	return v, nil
}

// buildSortedRing deduplicates peers ∪ {self}, hashes every address,
// and sorts by ID ascending, tie-breaking on address for determinism
// when two addresses collide under SHA-1.
func buildSortedRing(selfAddress string, peers []string) ([]Peer, error) {
	seen := make(map[string]bool, len(peers)+1)
	addrs := make([]string, 0, len(peers)+1)
	for _, p := range peers {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		addrs = append(addrs, p)
	}
	if !seen[selfAddress] {
		addrs = append(addrs, selfAddress)
	}

	ring := make([]Peer, len(addrs))
	for i, a := range addrs {
		ring[i] = Peer{Address: a, ID: HashID(a)}
	}

	sort.Slice(ring, func(i, j int) bool {
		c := ring[i].ID.Cmp(ring[j].ID)
		if c != 0 {
			return c < 0
		}
		return ring[i].Address < ring[j].Address
	})
	return ring, nil
}

// fingerCount returns the smallest F such that 2^(F-1) >= n, plus one
// extra shortcut slot, capped at idBits.
func fingerCount(n int) int {
	if n <= 1 {
		return 2
	}
	count, power := 1, 1
	for power < n {
		count++
		power *= 2
	}
	count++
	if count > idBits {
		count = idBits
	}
	return count
}

// buildFingerTable computes finger[i] = first ring entry whose ID is
// >= (selfID + 2^i) mod 2^160, wrapping to ring[0] if none qualifies.
func buildFingerTable(selfID *big.Int, ring []Peer) []Peer {
	f := fingerCount(len(ring))
	fingers := make([]Peer, f)
	for i := 0; i < f; i++ {
		start := addMod2(selfID, i)
		chosen := ring[0]
		for _, p := range ring {
			if p.ID.Cmp(start) >= 0 {
				chosen = p
				break
			}
		}
		fingers[i] = chosen
	}
	return fingers
}

// SelfAddress returns this node's address.
func (v *RingView) SelfAddress() string { return v.selfAddress }

// SelfID returns this node's ring identifier.
func (v *RingView) SelfID() *big.Int { return v.selfID }

// IsResponsible reports whether this node owns keyID: whether keyID
// falls in the half-open-closed arc (predecessor.ID, selfID].
func (v *RingView) IsResponsible(keyID *big.Int) bool {
	return InArcOC(keyID, v.predecessor.ID, v.selfID)
}

// ClosestPrecedingFinger returns the address of the finger closest to,
// but not past, targetID, scanning from the widest finger down. A
// finger that resolves back to self is skipped — without that
// exclusion a small ring can produce an immediate forwarding loop. If
// no finger qualifies, the direct successor is returned.
func (v *RingView) ClosestPrecedingFinger(targetID *big.Int) string {
	for i := len(v.fingers) - 1; i >= 0; i-- {
		f := v.fingers[i]
		if f.Address == v.selfAddress {
			continue
		}
		if InArcOO(f.ID, v.selfID, targetID) {
			return f.Address
		}
	}
	return v.successor.Address
}

// Neighbors returns this node's known neighbor addresses — predecessor,
// successor, and every finger — with self removed and duplicates
// collapsed, sorted ascending. This is a local view, not the full ring
// membership.
func (v *RingView) Neighbors() []string {
	seen := make(map[string]bool)
	add := func(addr string) {
		if addr != v.selfAddress {
			seen[addr] = true
		}
	}
	add(v.predecessor.Address)
	add(v.successor.Address)
	for _, f := range v.fingers {
		add(f.Address)
	}

	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
