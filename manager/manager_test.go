package manager

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbusgo/frame"
	"mbusgo/stats"
	"mbusgo/wmbus"
)

// scriptedPort is an in-memory Port whose next Read reply is whatever was
// queued for the Write that just preceded it, mirroring a device that
// answers each command in order.
type scriptedPort struct {
	mu        sync.Mutex
	responses [][]byte
	pending   []byte
	writes    [][]byte
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, append([]byte{}, b...))
	if len(p.responses) > 0 {
		p.pending = append(p.pending, p.responses[0]...)
		p.responses = p.responses[1:]
	}
	return len(b), nil
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptedPort) Close() error { return nil }

func ackBytes() []byte {
	return frame.Pack(frame.Frame{Kind: frame.KindAck})
}

func TestSendRequestHappyPath(t *testing.T) {
	resp := frame.NewLong(0x08, 0xFD, 0x72, nil)
	port := &scriptedPort{responses: [][]byte{
		ackBytes(),
		frame.Pack(resp),
	}}

	m := New(nil, nil)
	require.NoError(t, m.AddMBus("dev1", port, SerialConfig{Timeout: 50 * time.Millisecond}))

	records, err := m.SendRequest("dev1", "FFFFFFFFFFFFFFFF")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, port.writes, 2)
}

func TestSendRequestRecordsStats(t *testing.T) {
	resp := frame.NewLong(0x08, 0xFD, 0x72, nil)
	port := &scriptedPort{responses: [][]byte{ackBytes(), frame.Pack(resp)}}

	reg := stats.New()
	m := New(nil, reg)
	require.NoError(t, m.AddMBus("dev1", port, SerialConfig{Timeout: 50 * time.Millisecond}))

	_, err := m.SendRequest("dev1", "FFFFFFFFFFFFFFFF")
	require.NoError(t, err)

	snap, ok := reg.Snapshot(stats.WiredKey("FFFFFFFFFFFFFFFF"))
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.FramesOK)
	assert.Equal(t, uint64(1), snap.FramesTotal)
}

func TestSendRequestChainedFrames(t *testing.T) {
	more := frame.NewLong(0x08, 0xFD, 0x72|0x08, nil)
	last := frame.NewLong(0x08, 0xFD, 0x72, nil)
	port := &scriptedPort{responses: [][]byte{
		ackBytes(),
		frame.Pack(more),
		frame.Pack(last),
	}}

	m := New(nil, nil)
	require.NoError(t, m.AddMBus("dev1", port, SerialConfig{Timeout: 50 * time.Millisecond}))

	_, err := m.SendRequest("dev1", "FFFFFFFFFFFFFFFF")
	require.NoError(t, err)
	assert.Len(t, port.writes, 3)
}

func TestSendRequestUnknownHandle(t *testing.T) {
	m := New(nil, nil)
	_, err := m.SendRequest("missing", "FFFFFFFFFFFFFFFF")
	assert.Error(t, err)
}

func TestSendRequestTimesOutWithNoResponse(t *testing.T) {
	port := &scriptedPort{}
	m := New(nil, nil)
	require.NoError(t, m.AddMBus("dev1", port, SerialConfig{Timeout: 20 * time.Millisecond}))

	_, err := m.SendRequest("dev1", "FFFFFFFFFFFFFFFF")
	assert.Error(t, err)
}

func TestScanDevicesMergesWiredAndWireless(t *testing.T) {
	port := &scriptedPort{responses: [][]byte{ackBytes()}}
	m := New(nil, nil)
	require.NoError(t, m.AddMBus("wired1", port, SerialConfig{Timeout: 50 * time.Millisecond}))
	require.NoError(t, m.AddWMBus("wireless1", EUSMode().Build()))
	require.NoError(t, m.IngestWMBusFrame("wireless1", wmbus.Frame{Manufacturer: 0x1234, DeviceID: 42}))

	addrs, err := m.ScanDevices()
	require.NoError(t, err)
	assert.Len(t, addrs, 2)
}

func TestScanDevicesTransportFailureDoesNotLoseOtherHandles(t *testing.T) {
	bad := &scriptedPort{} // no responses queued: SelectDevice write then EOF read -> error
	good := &scriptedPort{responses: [][]byte{ackBytes()}}

	m := New(nil, nil)
	require.NoError(t, m.AddMBus("bad", bad, SerialConfig{Timeout: 10 * time.Millisecond}))
	require.NoError(t, m.AddMBus("good", good, SerialConfig{Timeout: 50 * time.Millisecond}))

	addrs, err := m.ScanDevices()
	assert.NoError(t, err) // a read timeout during scan means "no device", not a handle error
	assert.Len(t, addrs, 1)
}

func TestDisconnectAllClearsHandles(t *testing.T) {
	port := &scriptedPort{}
	m := New(nil, nil)
	require.NoError(t, m.AddMBus("dev1", port, SerialConfig{}))
	require.NoError(t, m.AddWMBus("w1", EUSMode().Build()))

	require.NoError(t, m.DisconnectAll())

	_, err := m.SendRequest("dev1", "FFFFFFFFFFFFFFFF")
	assert.Error(t, err)
}

func TestWMBusConfigPresets(t *testing.T) {
	s := EUSMode().Build()
	assert.Equal(t, uint32(868_950_000), s.FrequencyHz)
	assert.Equal(t, uint32(100_000), s.Bitrate)

	tMode := EUTMode().Build()
	assert.Equal(t, uint32(868_300_000), tMode.FrequencyHz)

	n := EUNMode().Build()
	assert.Equal(t, uint32(869_525_000), n.FrequencyHz)
	assert.Equal(t, uint32(4800), n.Bitrate)

	fast := FastScan().Build()
	assert.Equal(t, uint32(10_000), fast.DiscoveryTimeoutMs)
	assert.Equal(t, uint32(2_000), fast.RxTimeoutMs)

	long := LongRange().Build()
	assert.Equal(t, uint32(120_000), long.DiscoveryTimeoutMs)
	assert.Equal(t, uint32(15_000), long.RxTimeoutMs)
}
