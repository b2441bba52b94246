package event

import (
	"encoding/binary"
	"testing"

	"currency-ledger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrincipal(b byte) types.Principal {
	var p types.Principal
	for i := range p {
		p[i] = b
	}
	return p
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	from := testPrincipal(1)
	to := testPrincipal(2)

	events := []Event{
		{Kind: KindMint, Seq: 1, To: to, Amount: 100, Timestamp: 1700000000000000001},
		{Kind: KindTransfer, Seq: 2, From: from, To: to, Amount: 55, Timestamp: 1700000000000000002},
		{Kind: KindBurn, Seq: 3, From: from, Amount: 5, Timestamp: 1700000000000000003},
	}

	for _, ev := range events {
		data, err := Encode(ev)
		require.NoError(t, err)

		// 前 4 字节是小端类别标签
		assert.Equal(t, uint32(ev.Kind), binary.LittleEndian.Uint32(data[:4]))

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ev, decoded)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[:4], 999)

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.Error(t, err)
}

func TestEncodeUnknownKindRejected(t *testing.T) {
	_, err := Encode(Event{Kind: Kind(42)})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEnvelopeRoundtripPreservesOrder(t *testing.T) {
	source := testPrincipal(9)

	var encoded [][]byte
	for seq := uint64(1); seq <= 5; seq++ {
		data, err := Encode(Event{Kind: KindMint, Seq: seq, To: testPrincipal(2), Amount: seq, Timestamp: seq})
		require.NoError(t, err)
		encoded = append(encoded, data)
	}

	raw, err := EncodeEnvelope(source, encoded)
	require.NoError(t, err)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.True(t, env.Source.Equals(source))
	require.Len(t, env.Events, 5)

	for i, data := range env.Events {
		ev, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}
