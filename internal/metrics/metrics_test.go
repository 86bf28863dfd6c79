package metrics

import "testing"

func TestCollectorSnapshotReportsNonZeroProcessMemory(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()

	if snap.UsedMemoryBytes == 0 {
		t.Fatal("expected UsedMemoryBytes to be nonzero for the running test process")
	}
	if snap.PeakMemoryBytes < snap.UsedMemoryBytes {
		t.Fatalf("peak memory %d should be >= current usage %d", snap.PeakMemoryBytes, snap.UsedMemoryBytes)
	}
}

func TestCollectorSnapshotTracksPeakAcrossCalls(t *testing.T) {
	c := NewCollector()
	first := c.Snapshot()
	second := c.Snapshot()

	if second.PeakMemoryBytes < first.PeakMemoryBytes {
		t.Fatalf("peak should never decrease: first=%d second=%d", first.PeakMemoryBytes, second.PeakMemoryBytes)
	}
}
