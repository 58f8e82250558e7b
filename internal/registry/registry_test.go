package registry_test

import (
	"errors"
	"testing"

	"github.com/sandia-emesh/equipmesh/internal/registry"
	"github.com/sandia-emesh/equipmesh/internal/wire"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

type fakeConn struct {
	sent []wire.Message
	fail bool
}

func (f *fakeConn) WriteMessage(m wire.Message) error {
	if f.fail {
		return errors.New("write failed")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func TestAdmitAssignsLowestFreeID(t *testing.T) {
	r := registry.New(3, eqlog.Discard())

	id, err := r.Admit(&fakeConn{})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if id != "01" {
		t.Fatalf("got %q, want %q", id, "01")
	}
}

func TestAdmitReleaseConservesPoolSize(t *testing.T) {
	r := registry.New(2, eqlog.Discard())

	id1, _ := r.Admit(&fakeConn{})
	_, _ = r.Admit(&fakeConn{})

	if _, err := r.Admit(&fakeConn{}); !errors.Is(err, registry.ErrFull) {
		t.Fatalf("expected ErrFull at capacity, got %v", err)
	}

	if err := r.Release(id1); err != nil {
		t.Fatalf("Release: %v", err)
	}

	id3, err := r.Admit(&fakeConn{})
	if err != nil {
		t.Fatalf("Admit after release: %v", err)
	}
	if id3 != id1 {
		t.Fatalf("expected reused id %q, got %q", id1, id3)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := registry.New(2, eqlog.Discard())

	id, _ := r.Admit(&fakeConn{})
	if err := r.Release(id); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := r.Release(id); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("second Release should be a no-op error, got %v", err)
	}
}

func TestLookupUnknownIDFails(t *testing.T) {
	r := registry.New(2, eqlog.Discard())
	if _, err := r.Lookup("99"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotIsSortedAndMatchesCount(t *testing.T) {
	r := registry.New(5, eqlog.Discard())

	for i := 0; i < 3; i++ {
		if _, err := r.Admit(&fakeConn{}); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}

	snap := r.Snapshot()
	if len(snap) != r.Count() {
		t.Fatalf("snapshot len %d != count %d", len(snap), r.Count())
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1] >= snap[i] {
			t.Fatalf("snapshot not sorted: %v", snap)
		}
	}
}

func TestBroadcastExcludesGivenID(t *testing.T) {
	r := registry.New(3, eqlog.Discard())

	a := &fakeConn{}
	b := &fakeConn{}
	idA, _ := r.Admit(a)
	_, _ = r.Admit(b)

	r.Broadcast(wire.NewReqRem("01"), idA)

	if len(a.sent) != 0 {
		t.Fatalf("excluded connection should not have received the broadcast")
	}
	if len(b.sent) != 1 {
		t.Fatalf("expected the other connection to receive the broadcast, got %d messages", len(b.sent))
	}
}

func TestBroadcastReportsFailedTargets(t *testing.T) {
	r := registry.New(3, eqlog.Discard())

	bad := &fakeConn{fail: true}
	idBad, _ := r.Admit(bad)

	failed := r.Broadcast(wire.NewReqRem("02"), "")

	if len(failed) != 1 || failed[0] != idBad {
		t.Fatalf("expected %q in failed targets, got %v", idBad, failed)
	}
}

func TestPoolConservationInvariant(t *testing.T) {
	const max = 4
	r := registry.New(max, eqlog.Discard())

	var ids []wire.EquipmentID
	for i := 0; i < max; i++ {
		id, err := r.Admit(&fakeConn{})
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		ids = append(ids, id)
	}

	if r.Count() != max {
		t.Fatalf("expected registry full at %d, got %d", max, r.Count())
	}

	for _, id := range ids {
		if err := r.Release(id); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}

	if r.Count() != 0 {
		t.Fatalf("expected empty registry after releasing all, got %d", r.Count())
	}
}
