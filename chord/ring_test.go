package chord

import (
	"fmt"
	"sort"
	"testing"
)

func addresses(n int) []string {
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		addrs[i] = fmt.Sprintf("node%d.example:%d", i, 49152+i)
	}
	return addrs
}

func buildRing(t *testing.T, addrs []string) map[string]*RingView {
	t.Helper()
	views := make(map[string]*RingView, len(addrs))
	for _, a := range addrs {
		v, err := NewRingView(a, addrs)
		if err != nil {
			t.Fatalf("NewRingView(%q): %v", a, err)
		}
		views[a] = v
	}
	return views
}

func TestSingleNodeRing(t *testing.T) {
	v, err := NewRingView("solo:49152", nil)
	if err != nil {
		t.Fatalf("NewRingView: %v", err)
	}
	if v.predecessor.Address != "solo:49152" || v.successor.Address != "solo:49152" {
		t.Fatalf("single-node ring must have self as predecessor and successor, got pred=%s succ=%s",
			v.predecessor.Address, v.successor.Address)
	}
	for _, key := range []string{"a", "b", "anything"} {
		if !v.IsResponsible(HashID(key)) {
			t.Errorf("single node must be responsible for every key, failed on %q", key)
		}
	}
	if got := v.ClosestPrecedingFinger(HashID("x")); got != "solo:49152" {
		t.Errorf("ClosestPrecedingFinger on single-node ring = %q, want self", got)
	}
}

func TestSelfAbsentFromPeersIsAdded(t *testing.T) {
	v, err := NewRingView("missing:1", []string{"a:1", "b:2"})
	if err != nil {
		t.Fatalf("NewRingView with self absent from the peer list: %v", err)
	}
	if got := v.Neighbors(); fmt.Sprint(got) != fmt.Sprint([]string{"a:1", "b:2"}) {
		t.Fatalf("Neighbors() = %v, want [a:1 b:2]", got)
	}
}

func TestPartitionExactlyOneOwner(t *testing.T) {
	addrs := addresses(7)
	views := buildRing(t, addrs)

	keys := make([]string, 500)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	for _, key := range keys {
		keyID := HashID(key)
		owners := 0
		for _, v := range views {
			if v.IsResponsible(keyID) {
				owners++
			}
		}
		if owners != 1 {
			t.Fatalf("key %q owned by %d nodes, want exactly 1", key, owners)
		}
	}
}

func TestRingViewStableAcrossConstruction(t *testing.T) {
	addrs := addresses(5)
	views := buildRing(t, addrs)

	var want []string
	for a, v := range views {
		got := append([]string{a}, v.Neighbors()...)
		sort.Strings(got)
		if want == nil {
			want = got
			continue
		}
		// Every node's finger table is built over the same sorted ring,
		// so a given node's neighbor view is deterministic from its own
		// identity alone; this just re-derives it and checks stability.
		again, err := NewRingView(a, addrs)
		if err != nil {
			t.Fatalf("NewRingView: %v", err)
		}
		gotAgain := append([]string{a}, again.Neighbors()...)
		sort.Strings(gotAgain)
		if fmt.Sprint(got) != fmt.Sprint(gotAgain) {
			t.Errorf("ring view for %s not stable across construction", a)
		}
	}
}

func TestFingerZeroNeverSelfInMultiNodeRing(t *testing.T) {
	// finger[0] starts its scan at self_id+1, the narrowest possible
	// arc, so it is the finger guaranteed not to land back on self in
	// any ring with more than one node.
	addrs := addresses(9)
	views := buildRing(t, addrs)

	for addr, v := range views {
		if v.fingers[0].Address == addr {
			t.Errorf("node %s finger[0] resolved to self in a %d-node ring", addr, len(addrs))
		}
	}
}

func TestNetworkViewSelfExclusionSortedDedup(t *testing.T) {
	addrs := addresses(6)
	views := buildRing(t, addrs)

	for addr, v := range views {
		neighbors := v.Neighbors()
		for _, n := range neighbors {
			if n == addr {
				t.Errorf("Neighbors() for %s contains self", addr)
			}
		}
		if !sort.StringsAreSorted(neighbors) {
			t.Errorf("Neighbors() for %s not sorted: %v", addr, neighbors)
		}
		seen := make(map[string]bool)
		for _, n := range neighbors {
			if seen[n] {
				t.Errorf("Neighbors() for %s contains duplicate %s", addr, n)
			}
			seen[n] = true
		}
	}
}

func TestClosestPrecedingFingerNeverReturnsSelf(t *testing.T) {
	addrs := addresses(12)
	views := buildRing(t, addrs)

	for i := 0; i < 200; i++ {
		target := HashID(fmt.Sprintf("target-%d", i))
		for addr, v := range views {
			if v.IsResponsible(target) {
				continue
			}
			next := v.ClosestPrecedingFinger(target)
			if next == addr {
				t.Fatalf("ClosestPrecedingFinger returned self for node %s, target %s", addr, target)
			}
		}
	}
}

func TestRoutingTerminatesWithinNHops(t *testing.T) {
	addrs := addresses(10)
	views := buildRing(t, addrs)

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("routing-key-%d", i)
		keyID := HashID(key)

		current := addrs[i%len(addrs)]
		hops := 0
		for {
			v := views[current]
			if v.IsResponsible(keyID) {
				break
			}
			current = v.ClosestPrecedingFinger(keyID)
			hops++
			if hops > len(addrs) {
				t.Fatalf("routing for key %q did not terminate within %d hops", key, len(addrs))
			}
		}
	}
}

func TestFingerCount(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 2},
		{2, 3},
		{3, 4},
		{4, 4},
		{5, 5},
		{8, 5},
		{9, 6},
	}
	for _, c := range cases {
		if got := fingerCount(c.n); got != c.want {
			t.Errorf("fingerCount(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}
