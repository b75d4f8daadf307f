package model

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParseNodeID(t *testing.T) {
	t.Parallel()

	valid := NodeID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}

	tests := []struct {
		name    string
		input   string
		want    NodeID
		wantErr error
	}{
		{
			name:  "round trip of a valid id",
			input: valid.String(),
			want:  valid,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: ErrInvalidNodeID,
		},
		{
			name:    "invalid base58 alphabet",
			input:   "0OIl",
			wantErr: ErrInvalidNodeID,
		},
		{
			name:    "too short",
			input:   "3mJr7AoUXx2Wqd",
			wantErr: ErrInvalidNodeID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseNodeID(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNodeIDFromBytes(t *testing.T) {
	t.Parallel()

	t.Run("accepts exactly 20 bytes", func(t *testing.T) {
		t.Parallel()
		b := make([]byte, NodeIDSize)
		b[0] = 0xff
		id, err := NodeIDFromBytes(b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id[0] != 0xff {
			t.Errorf("expected first byte 0xff, got %#x", id[0])
		}
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		t.Parallel()
		if _, err := NodeIDFromBytes(make([]byte, 19)); !errors.Is(err, ErrInvalidNodeID) {
			t.Errorf("expected ErrInvalidNodeID, got %v", err)
		}
	})
}

func TestRandomNodeID(t *testing.T) {
	t.Parallel()

	a := RandomNodeID()
	b := RandomNodeID()
	if a == b {
		t.Error("expected two random ids to differ")
	}
	if a.IsZero() {
		t.Error("expected a non-zero random id")
	}
}

func TestNewPeer(t *testing.T) {
	t.Parallel()

	t.Run("unmaps IPv4-mapped addresses", func(t *testing.T) {
		t.Parallel()
		mapped := netip.MustParseAddrPort("[::ffff:192.0.2.1]:6881")
		p := NewPeer(mapped, NodeID{})
		if got := p.IP().String(); got != "192.0.2.1" {
			t.Errorf("expected 192.0.2.1, got %s", got)
		}
		if p.Addr.Port() != 6881 {
			t.Errorf("expected port 6881, got %d", p.Addr.Port())
		}
	})

	t.Run("keeps IPv6 addresses", func(t *testing.T) {
		t.Parallel()
		p := NewPeer(netip.MustParseAddrPort("[2001:db8::1]:1"), NodeID{})
		if got := p.IP().String(); got != "2001:db8::1" {
			t.Errorf("expected 2001:db8::1, got %s", got)
		}
	})
}

func TestOutcomeDumps(t *testing.T) {
	t.Parallel()

	if OutcomeInterrupted.Dumps() {
		t.Error("interrupted sessions must not dump")
	}
	if !OutcomeStalled.Dumps() {
		t.Error("stalled sessions must dump")
	}
	if !OutcomeLimitReached.Dumps() {
		t.Error("limit-reached sessions must dump")
	}
}
