package sink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbusgo/stats"
	"mbusgo/vif"
)

func TestBuildBatchCarriesDeviceAndRecords(t *testing.T) {
	key := stats.WirelessKey(0x1234, 99)
	records := []vif.Record{{Scaled: 42.5}}

	batch := buildBatch(key, records)

	assert.Equal(t, key.String(), batch.Device)
	assert.Len(t, batch.Records, 1)
	assert.False(t, batch.Timestamp.IsZero())
}

func TestRecordBatchRoundTripsThroughJSON(t *testing.T) {
	batch := buildBatch(stats.WiredKey("FFFFFFFFFFFFFFFF"), []vif.Record{
		{Scaled: 1.5, Primary: vif.Info{Quantity: "Energy", Unit: "Wh"}},
	})

	data, err := json.Marshal(batch)
	require.NoError(t, err)

	var decoded RecordBatch
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, batch.Device, decoded.Device)
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, "Energy", decoded.Records[0].Primary.Quantity)
}

func TestConnectNATSRejectsUnreachableURL(t *testing.T) {
	_, err := ConnectNATS(NATSConfig{URL: "nats://127.0.0.1:1", Subject: "mbus.records"})
	assert.Error(t, err)
}
