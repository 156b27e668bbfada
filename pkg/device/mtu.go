package device

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// PacketSizeAdjustment mirrors the five policies a stream creation call
// can request for auto_packet_size.
type PacketSizeAdjustment int

const (
	PacketSizeNever PacketSizeAdjustment = iota
	PacketSizeOnce
	PacketSizeAlways
	PacketSizeOnFailure
	PacketSizeOnFailureOnce
)

// exitEarly reports whether a failed probe under this policy should stop
// immediately with an error rather than falling back to the minimum size.
func (p PacketSizeAdjustment) exitEarly() bool {
	return p == PacketSizeOnFailure || p == PacketSizeOnFailureOnce
}

// probeConn is the subset of *net.UDPConn the bisection search needs,
// narrowed for testability.
type probeConn interface {
	SetReadDeadline(t time.Time) error
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	Close() error
	LocalAddr() net.Addr
}

// AutoPacketSize runs the bisection search for the largest packet size a
// link will carry without fragmentation: it programs the stream
// destination, sets "do not fragment", and bisects candidate sizes
// between the protocol bounds until the largest one that arrives intact
// is found, then programs the final size and restores "do not fragment"
// to the value it had before the probe.
//
// channel selects the stream channel (GevSCPAddrCalc's SEL) within the
// per-channel register block. exitEarly, when true, first confirms the
// packet size already programmed in the register still gets through and
// returns immediately if so, skipping the bisection entirely; callers
// pass adjustment.exitEarly() so PacketSizeOnFailure/OnFailureOnce only
// pay for a full negotiation when the current size has stopped working.
func (s *Session) AutoPacketSize(ctx context.Context, channel int, hostPort int, exitEarly bool) (int, error) {
	base := uint32(gvcp.StreamChannelBlockBase + channel*gvcp.StreamChannelBlockStride)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: s.GetInterfaceAddress().IP})
	if err != nil {
		return 0, gvcp.Errorf("AutoPacketSize", gvcp.KindUnknown, err)
	}
	defer conn.Close()

	localPort := conn.LocalAddr().(*net.UDPAddr).Port

	if err := s.programDestination(base, localPort); err != nil {
		return 0, err
	}
	prev, err := s.readRegister(base + gvcp.SCPacketSizeOffset)
	if err != nil {
		return 0, err
	}
	if err := s.setDoNotFragment(base, true); err != nil {
		return 0, err
	}
	defer s.setDoNotFragment(base, prev&(1<<1) != 0) // DoNotFragment bit, as in setDoNotFragment

	size, err := s.bisect(ctx, conn, base, hostPort, exitEarly)
	if err != nil {
		return 0, err
	}

	if err := s.writePacketSize(base, uint32(size)); err != nil {
		return 0, err
	}

	return size, nil
}

func (s *Session) bisect(ctx context.Context, conn probeConn, base uint32, hostPort int, exitEarly bool) (int, error) {
	const inc = 4 // GVSP packet sizes are 4-byte aligned

	minSize := gvcp.MinStreamPacketSize
	maxSize := gvcp.MaxStreamPacketSize

	if exitEarly {
		if current, err := s.currentPacketSize(base); err == nil && current > 0 {
			if err := s.fireTestPacket(base); err != nil {
				return 0, err
			}
			if testPacketArrives(conn, current) {
				return current, nil
			}
		}
	}

	lastSize := 0
	current := maxSize

	for {
		if err := ctx.Err(); err != nil {
			return 0, gvcp.Errorf("AutoPacketSize", gvcp.KindTimeout, err)
		}

		if err := s.writePacketSize(base, uint32(current)); err != nil {
			return 0, err
		}
		if err := s.fireTestPacket(base); err != nil {
			return 0, err
		}

		ok := testPacketArrives(conn, current)

		if ok {
			minSize = current
		} else {
			maxSize = current
		}

		if current == lastSize || minSize+inc >= maxSize {
			return minSize, nil
		}

		lastSize = current
		current = minSize + (((maxSize-minSize)/2+1)/inc)*inc
	}
}

// testPacketArrives reads up to three probe datagrams, accepting one
// whose size matches the expected on-wire size for the candidate packet
// size (payload size minus UDP/IP overhead), per test_packet_check.
func testPacketArrives(conn probeConn, candidateSize int) bool {
	expected := candidateSize - gvcp.UDPOverhead
	buf := make([]byte, gvcp.MaxStreamPacketSize)

	for attempt := 0; attempt < 3; attempt++ {
		conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		if n == expected {
			return true
		}
	}
	return false
}

func (s *Session) programDestination(base uint32, hostPort int) error {
	addr := s.GetInterfaceAddress().IP.To4()
	if addr == nil {
		return gvcp.Errorf("AutoPacketSize", gvcp.KindInvalidParameter, nil)
	}
	if err := s.writeRegister(base+gvcp.SCDestAddressOffset, binary.BigEndian.Uint32(addr)); err != nil {
		return err
	}
	// GevSCPHostPort occupies the top 16 bits of its register word.
	return s.writeRegister(base+gvcp.SCHostPortOffset, uint32(hostPort)<<16)
}

// currentPacketSize reads back the packet size presently programmed in
// GevSCPSPacketSize's top 16 bits, without altering it.
func (s *Session) currentPacketSize(base uint32) (int, error) {
	v, err := s.readRegister(base + gvcp.SCPacketSizeOffset)
	if err != nil {
		return 0, err
	}
	return int(v >> 16), nil
}

func (s *Session) writePacketSize(base uint32, size uint32) error {
	current, err := s.readRegister(base + gvcp.SCPacketSizeOffset)
	if err != nil {
		return err
	}
	// Packet size is the top 16 bits; low bits carry DoNotFragment/BigEndian flags.
	next := (current &^ 0xffff0000) | (size << 16)
	return s.writeRegister(base+gvcp.SCPacketSizeOffset, next)
}

func (s *Session) setDoNotFragment(base uint32, enabled bool) error {
	current, err := s.readRegister(base + gvcp.SCPacketSizeOffset)
	if err != nil {
		return err
	}
	const doNotFragmentBit = 1 << 1
	if enabled {
		current |= doNotFragmentBit
	} else {
		current &^= doNotFragmentBit
	}
	return s.writeRegister(base+gvcp.SCPacketSizeOffset, current)
}

// fireTestPacket triggers GevSCPSFireTestPacket on the given channel.
// Cameras expose it either as a command (write any nonzero value) or a
// boolean; writing 1 and clearing it back to 0 satisfies both without
// needing the feature tree.
func (s *Session) fireTestPacket(base uint32) error {
	const fireTestPacketBit = 1 << 0
	current, err := s.readRegister(base + gvcp.SCPacketSizeOffset)
	if err != nil {
		return err
	}
	if err := s.writeRegister(base+gvcp.SCPacketSizeOffset, current|fireTestPacketBit); err != nil {
		return err
	}
	return s.writeRegister(base+gvcp.SCPacketSizeOffset, current)
}
