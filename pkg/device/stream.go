package device

import (
	"context"
	"fmt"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// CreateStream validates the stream-channel preconditions, runs the MTU
// probe according to adjustment's policy, and hands off to creator,
// mirroring arv_gv_device_create_stream's precondition checks and
// first-stream-only auto-sizing.
//
// channel and hostPort identify the stream channel and the local UDP
// port the caller's receiver is bound to.
func (s *Session) CreateStream(ctx context.Context, creator StreamCreator, channel, hostPort int, adjustment PacketSizeAdjustment) (Stream, error) {
	count, err := s.readRegister(gvcp.RegStreamChannelCount)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, gvcp.Errorf("CreateStream", gvcp.KindNoStreamChannel, fmt.Errorf("device reports no stream channels"))
	}
	if !s.IsController() {
		return nil, gvcp.Errorf("CreateStream", gvcp.KindNotController, fmt.Errorf("session does not hold control"))
	}

	onceOnly := adjustment == PacketSizeOnce || adjustment == PacketSizeOnFailureOnce
	runProbe := adjustment == PacketSizeAlways || adjustment == PacketSizeOnFailure ||
		(onceOnly && !s.firstStreamCreated())

	var packetSize int
	if runProbe {
		packetSize, err = s.AutoPacketSize(ctx, channel, hostPort, adjustment.exitEarly())
		if err != nil && adjustment.exitEarly() {
			return nil, err
		}
	}
	if packetSize == 0 {
		packetSize = gvcp.MinStreamPacketSize
	}

	s.markFirstStreamCreated()

	stream, err := creator.CreateStream(ctx, StreamOptions{PacketSize: packetSize})
	if err != nil {
		return nil, gvcp.Errorf("CreateStream", gvcp.KindUnknown, err)
	}

	if !s.Capability().PacketResendSupported {
		// Nothing to disable here: packet-resend is a stream-receiver
		// option outside this package's scope, left to creator's defaults.
		log.Debug().Msg("device does not advertise packet resend support")
	}

	return stream, nil
}

func (s *Session) firstStreamCreated() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.streamCreated
}

func (s *Session) markFirstStreamCreated() {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	s.streamCreated = true
}
