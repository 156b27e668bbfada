package gvcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeReadRegisterCmd(t *testing.T) {
	buf := EncodeReadRegisterCmd(7, 0x0a00)
	require.Len(t, buf, HeaderSize+4)
	ack := ParseAck(append([]byte{0, 0, 0x00, 0x81, 0, 4, 0, 7}, buf[HeaderSize:]...))
	require.Equal(t, CommandReadRegisterAck, ack.Command)
	require.Equal(t, uint16(7), ack.ID)
}

func TestParseAckClassifiesPendingAck(t *testing.T) {
	buf := make([]byte, PendingAckSize)
	buf[3] = byte(CommandPendingAck)
	buf[5] = 4
	buf[7] = 42
	buf[HeaderSize+2] = 0x01
	buf[HeaderSize+3] = 0xf4 // 500ms

	ack := ParseAck(buf)
	require.Equal(t, PacketTypePendingAck, ack.Type)
	require.Equal(t, uint16(42), ack.ID)
	require.Equal(t, uint16(500), ack.PendingAckExtensionMS())
}

func TestParseAckClassifiesErrorAck(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = 0x80
	buf[1] = 0x03 // invalid address
	buf[3] = byte(CommandReadRegisterAck)
	buf[7] = 1

	ack := ParseAck(buf)
	require.Equal(t, PacketTypeErrorAck, ack.Type)
	require.Equal(t, uint16(0x8003), ack.ErrorCode)
	require.Equal(t, "invalid address", ErrorFlagsToString(ack.ErrorCode))
}

func TestParseAckShortBufferIsUnknown(t *testing.T) {
	ack := ParseAck([]byte{1, 2, 3})
	require.Equal(t, PacketTypeUnknown, ack.Type)
}

func TestIdentifierSequenceSkipsZero(t *testing.T) {
	g := &idGenerator{next: 0xffff}
	first := g.Next()
	second := g.Next()
	require.Equal(t, uint16(0xffff), first)
	require.Equal(t, uint16(1), second)
}

func TestIdentifierSequenceMonotonic(t *testing.T) {
	g := newIDGenerator()
	prev := g.Next()
	for i := 0; i < 100; i++ {
		id := g.Next()
		require.NotEqual(t, uint16(0), id)
		require.NotEqual(t, prev, id)
		prev = id
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := Errorf("ReadRegister", KindTimeout, nil)
	require.ErrorIs(t, err, ErrTimeout)
	require.False(t, errorIsKind(err, KindProtocolError))
}

func errorIsKind(err *Error, k Kind) bool {
	return err.Kind == k
}
