package crawler

import "testing"

func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicate identities", func(t *testing.T) {
		t.Parallel()

		f := newFrontier(4, 4)
		p := testPeer(1)

		if !f.add(p) {
			t.Fatal("expected first add to succeed")
		}
		dup := p
		dup.Addr = testPeer(2).Addr
		if f.add(dup) {
			t.Error("expected same identity at a new address to be rejected")
		}
		if f.len() != 1 {
			t.Errorf("expected 1 node, got %d", f.len())
		}
		if !f.contains(p.ID) {
			t.Error("expected frontier to contain the node")
		}
	})

	t.Run("grows by the increment and keeps order", func(t *testing.T) {
		t.Parallel()

		f := newFrontier(2, 3)
		for i := range byte(6) {
			before := f.len()
			f.add(testPeer(i))
			if f.len() < before {
				t.Fatalf("frontier shrank from %d to %d", before, f.len())
			}
		}

		if f.len() != 6 {
			t.Fatalf("expected 6 nodes, got %d", f.len())
		}
		if got := cap(f.peers); got != 8 {
			t.Errorf("expected capacity 2+3+3=8, got %d", got)
		}
		for i := range 6 {
			if f.at(i) != testPeer(byte(i)) {
				t.Errorf("node %d out of order", i)
			}
		}
	})

	t.Run("pending counts nodes after the cursor", func(t *testing.T) {
		t.Parallel()

		f := newFrontier(4, 4)
		for i := range byte(3) {
			f.add(testPeer(i))
		}
		f.sendPtr = 1
		if f.pending() != 2 {
			t.Errorf("expected 2 pending, got %d", f.pending())
		}
	})

	t.Run("zero sizes are clamped", func(t *testing.T) {
		t.Parallel()

		f := newFrontier(0, 0)
		f.add(testPeer(1))
		f.add(testPeer(2))
		if f.len() != 2 {
			t.Errorf("expected 2 nodes, got %d", f.len())
		}
	})
}
