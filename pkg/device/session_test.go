package device_test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OverviewCorporation/aravis/pkg/device"
	"github.com/OverviewCorporation/aravis/pkg/gvcp"
	"github.com/OverviewCorporation/aravis/pkg/gvcp/gvcptest"
)

func newTestRegisters(t *testing.T) *gvcptest.Registers {
	t.Helper()
	regs := gvcptest.NewRegisters()

	const schemaAddr = 0x2000
	schema := []byte("<RegisterDescription/>")
	regs.Set(schemaAddr, schema)
	regs.Set(gvcp.RegXMLURL0, []byte("local:doc.xml;2000;16\x00"))

	regs.SetUint32(gvcp.RegDeviceMode, gvcp.DeviceModeBigEndian)
	regs.SetUint32(gvcp.RegGVCPCapability, gvcp.CapabilityWriteMemory)
	regs.SetUint32(gvcp.RegStreamChannelCount, 1)
	regs.SetUint32(gvcp.RegControlChannelPrivilege, 0)
	regs.SetUint32(gvcp.RegCurrentIPAddress, 0x0a000005)
	regs.SetUint32(gvcp.RegCurrentSubnetMask, 0xffffff00)
	regs.SetUint32(gvcp.RegCurrentDefaultGateway, 0x0a000001)

	return regs
}

func openTestSession(t *testing.T, regs *gvcptest.Registers) (*device.Session, *gvcptest.Device) {
	t.Helper()
	dev, err := gvcptest.NewDevice(regs)
	require.NoError(t, err)
	t.Cleanup(dev.Close)

	sess, err := device.Open(context.Background(), dev.Addr(), device.Options{
		Config: device.Config{NRetries: 3, TimeoutMS: 100, HeartbeatPeriodMS: 20},
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	return sess, dev
}

func TestOpenBootstrapsAndTakesControl(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)

	require.True(t, sess.IsController())
	require.True(t, sess.DeviceMode().BigEndian)
	require.True(t, sess.Capability().WriteMemorySupported)
}

func TestCloseIsIdempotent(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestGetCurrentIP(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)

	addr, mask, gw, err := sess.GetCurrentIP()
	require.NoError(t, err)
	require.Equal(t, net.IPv4(10, 0, 0, 5).To4(), addr.To4())
	require.Equal(t, net.IPv4(255, 255, 255, 0).To4(), mask.To4())
	require.Equal(t, net.IPv4(10, 0, 0, 1).To4(), gw.To4())
}

func TestSetPersistentIPRejectsIPv6(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)

	err := sess.SetPersistentIPFromString("::1", "::1", "::1")
	require.Error(t, err)
}

func TestSetIPConfigurationModeRoundTrip(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)

	require.NoError(t, sess.SetIPConfigurationMode(device.IPConfigurationDHCP))
	mode, err := sess.GetIPConfigurationMode()
	require.NoError(t, err)
	require.Equal(t, device.IPConfigurationDHCP, mode)
}

func TestHeartbeatNotifiesControlLost(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)
	require.True(t, sess.IsController())

	var notifications atomic.Int32
	lost := make(chan struct{}, 1)
	sess.OnControlLost(func() {
		notifications.Add(1)
		select {
		case lost <- struct{}{}:
		default:
		}
	})

	regs.SetUint32(gvcp.RegControlChannelPrivilege, 0)

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("control-lost callback was not invoked")
	}
	require.False(t, sess.IsController())

	// Several more heartbeat periods elapse with control still lost and
	// the register still reporting no privilege; the callback must not
	// fire again until control is retaken.
	time.Sleep(200 * time.Millisecond)
	require.EqualValues(t, 1, notifications.Load())
}

func TestCreateStreamRequiresController(t *testing.T) {
	regs := newTestRegisters(t)
	sess, _ := openTestSession(t, regs)
	require.NoError(t, sess.LeaveControl(context.Background()))

	_, err := sess.CreateStream(context.Background(), nopStreamCreator{}, 0, 12345, device.PacketSizeNever)
	require.Error(t, err)
	require.ErrorIs(t, err, gvcp.ErrNotController)
}

func TestCreateStreamRequiresStreamChannel(t *testing.T) {
	regs := newTestRegisters(t)
	regs.SetUint32(gvcp.RegStreamChannelCount, 0)
	sess, _ := openTestSession(t, regs)

	_, err := sess.CreateStream(context.Background(), nopStreamCreator{}, 0, 12345, device.PacketSizeNever)
	require.Error(t, err)
	require.ErrorIs(t, err, gvcp.ErrNoStreamChannel)
}

type nopStreamCreator struct{}

func (nopStreamCreator) CreateStream(ctx context.Context, opts device.StreamOptions) (device.Stream, error) {
	return nopStream{}, nil
}

type nopStream struct{}

func (nopStream) Close() error { return nil }
