package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFrameTalliesByOutcome(t *testing.T) {
	r := New()
	key := WiredKey("12345678FFFFFFFF")

	r.RecordFrame(key, OutcomeOK)
	r.RecordFrame(key, OutcomeCRCError)
	r.RecordFrame(key, OutcomeBlockCRCError)
	r.RecordFrame(key, OutcomeParseError)
	r.RecordFrame(key, OutcomeEncryptedSkipped)
	r.RecordFrame(key, OutcomeInvalidHeader)

	snap, ok := r.Snapshot(key)
	require.True(t, ok)
	assert.Equal(t, uint64(6), snap.FramesTotal)
	assert.Equal(t, uint64(1), snap.FramesOK)
	assert.Equal(t, uint64(1), snap.CRCErrors)
	assert.Equal(t, uint64(1), snap.BlockCRCErrors)
	assert.Equal(t, uint64(1), snap.ParseErrors)
	assert.Equal(t, uint64(1), snap.EncryptedFramesSkipped)
	assert.Equal(t, uint64(1), snap.InvalidHeaders)
}

func TestSnapshotUnknownKeyIsFalse(t *testing.T) {
	r := New()
	_, ok := r.Snapshot(WirelessKey(0x1234, 99))
	assert.False(t, ok)
}

func TestWiredAndWirelessKeysAreDistinct(t *testing.T) {
	r := New()
	wired := WiredKey("FFFFFFFFFFFFFFFF")
	wireless := WirelessKey(0, 0)

	r.RecordFrame(wired, OutcomeOK)
	r.RecordFrame(wireless, OutcomeCRCError)

	ws, ok := r.Snapshot(wired)
	require.True(t, ok)
	assert.Equal(t, uint64(1), ws.FramesOK)

	wl, ok := r.Snapshot(wireless)
	require.True(t, ok)
	assert.Equal(t, uint64(1), wl.CRCErrors)
}

func TestResetZeroesButKeepsEntry(t *testing.T) {
	r := New()
	key := WiredKey("A")
	r.RecordFrame(key, OutcomeOK)

	r.Reset(key)

	snap, ok := r.Snapshot(key)
	require.True(t, ok)
	assert.Zero(t, snap.FramesTotal)
}

func TestResetAllZeroesEveryDevice(t *testing.T) {
	r := New()
	a, b := WiredKey("A"), WiredKey("B")
	r.RecordFrame(a, OutcomeOK)
	r.RecordFrame(b, OutcomeCRCError)

	r.ResetAll()

	for _, key := range []DeviceKey{a, b} {
		snap, ok := r.Snapshot(key)
		require.True(t, ok)
		assert.Zero(t, snap.FramesTotal)
	}
}

func TestAllSnapshotsCoversEveryDevice(t *testing.T) {
	r := New()
	for i := 0; i < 50; i++ {
		r.RecordFrame(WirelessKey(uint16(i), uint32(i)), OutcomeOK)
	}
	all := r.AllSnapshots()
	assert.Len(t, all, 50)
}

func TestDeviceKeyStringDistinguishesWiredAndWireless(t *testing.T) {
	wired := WiredKey("ABCDEF")
	wireless := WirelessKey(0x1234, 0xAABBCCDD)
	assert.NotEqual(t, wired.String(), wireless.String())
	assert.Contains(t, wired.String(), "wired:")
	assert.Contains(t, wireless.String(), "wireless:")
}

func TestConcurrentRecordFrameIsRaceFree(t *testing.T) {
	r := New()
	key := WiredKey("shared")

	var wg sync.WaitGroup
	const goroutines = 16
	const perGoroutine = 200
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				r.RecordFrame(key, OutcomeOK)
			}
		}()
	}
	wg.Wait()

	snap, ok := r.Snapshot(key)
	require.True(t, ok)
	assert.Equal(t, uint64(goroutines*perGoroutine), snap.FramesTotal)
}
