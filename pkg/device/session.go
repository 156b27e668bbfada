package device

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// Session is the facade over a single GigE Vision device's control
// channel: construction, register/memory access, IP configuration,
// privilege lease and heartbeat, schema bootstrap and stream creation.
//
// The exchange path is guarded by mu, since the protocol has no way to
// pipeline concurrent requests on one socket; a handful of fields read by
// the heartbeat goroutine are guarded separately by stateMu so a slow
// exchange never blocks heartbeat bookkeeping.
type Session struct {
	conn *net.UDPConn
	ex   *gvcp.Exchanger
	cfg  Config

	mu sync.Mutex // serializes exchange path

	stateMu      sync.RWMutex
	isController bool
	deviceMode   DeviceMode
	capability   Capability

	lease *lease

	onControlLost ControlLostListener

	schema    []byte
	schemaMu  sync.Mutex

	httpFetcher HTTPFetcher
	urlParser   URLParser

	streamMu      sync.Mutex
	streamCreated bool

	closeOnce sync.Once
}

// DeviceMode decodes the device-mode register.
type DeviceMode struct {
	BigEndian bool
}

// Capability decodes the GVCP capability register.
type Capability struct {
	PacketResendSupported bool
	WriteMemorySupported  bool
}

// Options configures Open.
type Options struct {
	Config      Config
	HTTPFetcher HTTPFetcher
	URLParser   URLParser
}

// Open binds a UDP control socket to addr, loads the GenICam schema,
// takes control (advisory, non-fatal on failure) and starts the
// heartbeat goroutine, following the construction sequence of
// arv_gv_device_constructed.
func Open(ctx context.Context, addr *net.UDPAddr, opts Options) (*Session, error) {
	if addr.IP.To4() == nil {
		return nil, gvcp.Errorf("Open", gvcp.KindInvalidParameter, fmt.Errorf("IPv6 device address %s not supported", addr.IP))
	}

	port := addr.Port
	if port == 0 {
		port = gvcp.ControlPort
	}
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: addr.IP, Port: port})
	if err != nil {
		return nil, gvcp.Errorf("Open", gvcp.KindUnknown, err)
	}

	cfg := opts.Config
	if cfg.NRetries == 0 {
		cfg = DefaultConfig()
	}

	s := &Session{
		conn:        conn,
		ex:          gvcp.NewExchanger(conn),
		cfg:         cfg,
		httpFetcher: opts.HTTPFetcher,
		urlParser:   opts.URLParser,
	}
	if s.httpFetcher == nil {
		s.httpFetcher = NewDefaultHTTPFetcher()
	}
	if s.urlParser == nil {
		s.urlParser = defaultURLParser{}
	}

	if err := s.bootstrapSchema(ctx); err != nil {
		conn.Close()
		return nil, gvcp.Errorf("Open", gvcp.KindGenicamNotFound, err)
	}

	if err := s.TakeControl(ctx); err != nil {
		log.Warn().Err(err).Msg("take control failed at open, continuing without privilege")
	}

	s.lease = startHeartbeat(s)

	if err := s.readDeviceMode(ctx); err != nil {
		log.Warn().Err(err).Msg("read device mode failed")
	}
	if err := s.readCapability(ctx); err != nil {
		log.Warn().Err(err).Msg("read capability failed")
	}

	return s, nil
}

// OnControlLost registers the single consumer notified when the
// heartbeat observes privilege has been lost. It is not safe to call
// concurrently with Open's heartbeat already running and a privilege
// loss in flight; call it immediately after Open.
func (s *Session) OnControlLost(fn ControlLostListener) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.onControlLost = fn
}

// Close is idempotent: it stops the heartbeat, releases control if held,
// and closes the socket.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.lease != nil {
			s.lease.stop()
		}
		if s.IsController() {
			_ = s.LeaveControl(context.Background())
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Session) IsController() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.isController
}

func (s *Session) setController(v bool) {
	s.stateMu.Lock()
	s.isController = v
	s.stateMu.Unlock()
}

// readRegister/writeRegister/readMemory/writeMemory are the single-chunk
// primitives that block.go and ip.go build on.

func (s *Session) readRegister(address uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ack, err := s.ex.Do(context.Background(), s.exchangeOpts(),
		func(id uint16) []byte { return gvcp.EncodeReadRegisterCmd(id, address) },
		gvcp.CommandReadRegisterAck, gvcp.ReadRegisterAckSize())
	if err != nil {
		return 0, err
	}
	return ack.ReadRegisterAckValue(), nil
}

func (s *Session) writeRegister(address, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.ex.Do(context.Background(), s.exchangeOpts(),
		func(id uint16) []byte { return gvcp.EncodeWriteRegisterCmd(id, address, value) },
		gvcp.CommandWriteRegisterAck, gvcp.WriteRegisterAckSize())
	return err
}

func (s *Session) readMemory(address uint32, size uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ack, err := s.ex.Do(context.Background(), s.exchangeOpts(),
		func(id uint16) []byte { return gvcp.EncodeReadMemoryCmd(id, address, size) },
		gvcp.CommandReadMemoryAck, gvcp.ReadMemoryAckSize(int(size)))
	if err != nil {
		return nil, err
	}
	return ack.ReadMemoryAckData(), nil
}

func (s *Session) writeMemory(address uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.ex.Do(context.Background(), s.exchangeOpts(),
		func(id uint16) []byte { return gvcp.EncodeWriteMemoryCmd(id, address, data) },
		gvcp.CommandWriteMemoryAck, gvcp.WriteMemoryAckSize())
	return err
}

func (s *Session) exchangeOpts() gvcp.ExchangeOptions {
	return gvcp.ExchangeOptions{NRetries: s.cfg.NRetries, Timeout: s.cfg.Timeout()}
}

func (s *Session) readDeviceMode(_ context.Context) error {
	v, err := s.readRegister(gvcp.RegDeviceMode)
	if err != nil {
		return err
	}
	s.stateMu.Lock()
	s.deviceMode = DeviceMode{BigEndian: v&gvcp.DeviceModeBigEndian != 0}
	s.stateMu.Unlock()
	return nil
}

func (s *Session) readCapability(_ context.Context) error {
	v, err := s.readRegister(gvcp.RegGVCPCapability)
	if err != nil {
		return err
	}
	s.stateMu.Lock()
	s.capability = Capability{
		PacketResendSupported: v&gvcp.CapabilityPacketResend != 0,
		WriteMemorySupported:  v&gvcp.CapabilityWriteMemory != 0,
	}
	s.stateMu.Unlock()
	return nil
}

// DeviceMode returns the last decoded device-mode register value.
func (s *Session) DeviceMode() DeviceMode {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.deviceMode
}

// Capability returns the last decoded GVCP capability register value.
func (s *Session) Capability() Capability {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.capability
}

// GetTimestampTickFrequency combines the high/low 32-bit registers into
// a single 64-bit tick frequency, per arv_gv_device_get_timestamp_tick_frequency.
func (s *Session) GetTimestampTickFrequency() (uint64, error) {
	high, err := s.readRegister(gvcp.RegTimestampTickFrequencyHigh)
	if err != nil {
		return 0, err
	}
	low, err := s.readRegister(gvcp.RegTimestampTickFrequencyLow)
	if err != nil {
		return 0, err
	}
	return uint64(high)<<32 | uint64(low), nil
}

// GetDeviceAddress returns the address the socket is connected to.
func (s *Session) GetDeviceAddress() *net.UDPAddr {
	return s.conn.RemoteAddr().(*net.UDPAddr)
}

// GetInterfaceAddress returns the local interface address the control
// socket is bound to.
func (s *Session) GetInterfaceAddress() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}
