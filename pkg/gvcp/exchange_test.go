package gvcp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
	"github.com/OverviewCorporation/aravis/pkg/gvcp/gvcptest"
)

func dial(t *testing.T, addr *net.UDPAddr) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestExchangeReadRegisterHappyPath(t *testing.T) {
	regs := gvcptest.NewRegisters()
	regs.SetUint32(0x0a00, 0x11223344)

	dev, err := gvcptest.NewDevice(regs)
	require.NoError(t, err)
	defer dev.Close()

	ex := gvcp.NewExchanger(dial(t, dev.Addr()))
	ack, err := ex.Do(context.Background(), gvcp.ExchangeOptions{NRetries: 3, Timeout: 200 * time.Millisecond},
		func(id uint16) []byte { return gvcp.EncodeReadRegisterCmd(id, 0x0a00) },
		gvcp.CommandReadRegisterAck, gvcp.ReadRegisterAckSize())
	require.NoError(t, err)
	require.Equal(t, uint32(0x11223344), ack.ReadRegisterAckValue())
}

func TestExchangeSurvivesDroppedRequests(t *testing.T) {
	regs := gvcptest.NewRegisters()
	regs.SetUint32(0x0a00, 7)

	dev, err := gvcptest.NewDevice(regs)
	require.NoError(t, err)
	defer dev.Close()
	dev.SetBehavior(gvcp.CommandReadRegisterCmd, gvcptest.Behavior{DropCount: 2})

	ex := gvcp.NewExchanger(dial(t, dev.Addr()))
	ack, err := ex.Do(context.Background(), gvcp.ExchangeOptions{NRetries: 5, Timeout: 100 * time.Millisecond},
		func(id uint16) []byte { return gvcp.EncodeReadRegisterCmd(id, 0x0a00) },
		gvcp.CommandReadRegisterAck, gvcp.ReadRegisterAckSize())
	require.NoError(t, err)
	require.Equal(t, uint32(7), ack.ReadRegisterAckValue())
}

func TestExchangeExhaustsRetriesAndTimesOut(t *testing.T) {
	regs := gvcptest.NewRegisters()
	dev, err := gvcptest.NewDevice(regs)
	require.NoError(t, err)
	defer dev.Close()
	dev.SetBehavior(gvcp.CommandReadRegisterCmd, gvcptest.Behavior{DropCount: 1000})

	ex := gvcp.NewExchanger(dial(t, dev.Addr()))
	_, err = ex.Do(context.Background(), gvcp.ExchangeOptions{NRetries: 2, Timeout: 30 * time.Millisecond},
		func(id uint16) []byte { return gvcp.EncodeReadRegisterCmd(id, 0x0a00) },
		gvcp.CommandReadRegisterAck, gvcp.ReadRegisterAckSize())
	require.Error(t, err)
	require.ErrorIs(t, err, gvcp.ErrTimeout)
}

func TestExchangeAdvancesIdentifierOnRetry(t *testing.T) {
	raw, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer raw.Close()

	conn, err := net.DialUDP("udp", nil, raw.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	ex := gvcp.NewExchanger(conn)

	ids := make(chan uint16, 2)
	go func() {
		buf := make([]byte, 64)
		for i := 0; i < 2; i++ {
			n, addr, err := raw.ReadFromUDP(buf)
			if err != nil {
				return
			}
			frame := gvcp.ParseAck(buf[:n]) // header layout is shared between request and ack
			ids <- frame.ID
			if i == 1 {
				// Answer the second (and only the second) request so the
				// exchange succeeds instead of exhausting retries.
				ack := make([]byte, gvcp.HeaderSize+4)
				ack[3] = byte(gvcp.CommandReadRegisterAck)
				ack[5] = 4
				ack[6] = byte(frame.ID >> 8)
				ack[7] = byte(frame.ID)
				raw.WriteToUDP(ack, addr)
			}
		}
	}()

	_, err = ex.Do(context.Background(), gvcp.ExchangeOptions{NRetries: 2, Timeout: 30 * time.Millisecond},
		func(id uint16) []byte { return gvcp.EncodeReadRegisterCmd(id, 0x0a00) },
		gvcp.CommandReadRegisterAck, gvcp.ReadRegisterAckSize())
	require.NoError(t, err)

	first := <-ids
	second := <-ids
	require.Equal(t, first+1, second)
}

func TestExchangePendingAckExtendsDeadlineWithoutRetry(t *testing.T) {
	regs := gvcptest.NewRegisters()
	regs.SetUint32(0x0a00, 99)
	dev, err := gvcptest.NewDevice(regs)
	require.NoError(t, err)
	defer dev.Close()
	dev.SetBehavior(gvcp.CommandReadRegisterCmd, gvcptest.Behavior{PendingAcks: 1, PendingExtMS: 200})

	ex := gvcp.NewExchanger(dial(t, dev.Addr()))
	// A single retry budget must still succeed: the pending-ack must not
	// consume the one retry attempt we have.
	ack, err := ex.Do(context.Background(), gvcp.ExchangeOptions{NRetries: 1, Timeout: 50 * time.Millisecond},
		func(id uint16) []byte { return gvcp.EncodeReadRegisterCmd(id, 0x0a00) },
		gvcp.CommandReadRegisterAck, gvcp.ReadRegisterAckSize())
	require.NoError(t, err)
	require.Equal(t, uint32(99), ack.ReadRegisterAckValue())
}
