package lora

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDecoder struct {
	name       string
	confidence Confidence
	fields     map[string]float64
}

func (d fixedDecoder) Name() string { return d.name }

func (d fixedDecoder) Decode(payload []byte, _ uint8) (MeteringData, error) {
	return MeteringData{Fields: d.fields, Raw: payload}, nil
}

func (d fixedDecoder) AutoDetect([]byte, uint8) Confidence { return d.confidence }

func TestDecodeFallsBackToRawWithNoDecodersRegistered(t *testing.T) {
	r := New()
	data, name, err := r.Decode("dev1", []byte{0x01, 0x02}, 1)
	require.NoError(t, err)
	assert.Equal(t, "raw", name)
	assert.Equal(t, []byte{0x01, 0x02}, data.Raw)
}

func TestDecodePicksHighestConfidenceMatch(t *testing.T) {
	r := New()
	r.Register(fixedDecoder{name: "low", confidence: ConfidenceLow})
	r.Register(fixedDecoder{name: "high", confidence: ConfidenceHigh, fields: map[string]float64{"temp": 21.5}})

	data, name, err := r.Decode("dev1", []byte{0xAA}, 2)
	require.NoError(t, err)
	assert.Equal(t, "high", name)
	assert.Equal(t, 21.5, data.Fields["temp"])
}

func TestExplicitDeviceMappingSkipsAutoDetect(t *testing.T) {
	r := New()
	r.Register(fixedDecoder{name: "generic", confidence: ConfidenceCertain})
	r.RegisterForDevice("dev1", fixedDecoder{name: "pinned", confidence: ConfidenceNone})

	_, name, err := r.Decode("dev1", []byte{0x01}, 1)
	require.NoError(t, err)
	assert.Equal(t, "pinned", name)

	_, name, err = r.Decode("dev2", []byte{0x01}, 1)
	require.NoError(t, err)
	assert.Equal(t, "generic", name)
}

func TestRegisteredDeviceIDsAndDecoderCount(t *testing.T) {
	r := New()
	r.Register(fixedDecoder{name: "a", confidence: ConfidenceLow})
	r.Register(fixedDecoder{name: "b", confidence: ConfidenceLow})
	r.RegisterForDevice("dev1", fixedDecoder{name: "pinned", confidence: ConfidenceCertain})

	assert.Equal(t, 2, r.DecoderCount())
	assert.ElementsMatch(t, []string{"dev1"}, r.RegisteredDeviceIDs())
}

func TestNoConfidentMatchStillUsesFallback(t *testing.T) {
	r := New()
	r.Register(fixedDecoder{name: "indifferent", confidence: ConfidenceNone})

	_, name, err := r.Decode("dev1", []byte{0x01}, 1)
	require.NoError(t, err)
	assert.Equal(t, "raw", name)
}
