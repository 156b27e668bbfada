package gvcp

import (
	"context"
	"net"
	"time"

	"github.com/OverviewCorporation/aravis/internal/applog"
	"github.com/rs/zerolog"
)

// Transport is the minimal socket surface the exchange state machine
// needs, satisfied by *net.UDPConn. Tests drive it over loopback UDP
// against the gvcptest simulator or a raw listening socket.
type Transport interface {
	SetDeadline(t time.Time) error
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
}

// ExchangeOptions bounds a single request/ack exchange.
type ExchangeOptions struct {
	NRetries int
	Timeout  time.Duration
}

// Exchanger runs the send-and-wait-for-ack state machine: up to NRetries
// attempts, each bounded by Timeout, with PENDING_ACK frames extending
// the current attempt's deadline without consuming a retry. Only one
// exchange runs at a time per Exchanger; the caller is responsible for
// serializing access (device.Session does this with a mutex, since the
// wire protocol has no way to pipeline requests).
type Exchanger struct {
	Transport Transport
	ids       *idGenerator
	log       zerolog.Logger
}

// NewExchanger wraps t with a fresh packet identifier sequence.
func NewExchanger(t Transport) *Exchanger {
	return &Exchanger{Transport: t, ids: newIDGenerator(), log: applog.For("gvcp")}
}

// Do calls buildRequest with the next identifier to get a fully encoded
// GVCP command frame, sends it, and returns the matching ack. want is the
// ack command the caller expects (see ExpectedAck); minAckSize is the
// smallest legal ack frame size, header included, used to discard
// truncated frames from unrelated traffic.
//
// A fresh identifier is drawn for every wire retransmit (the first send
// and each subsequent retry), but not for a pending-ack extension, which
// only pushes the current attempt's deadline back.
func (e *Exchanger) Do(ctx context.Context, opts ExchangeOptions, buildRequest func(id uint16) []byte, want Command, minAckSize int) (Ack, error) {
	if opts.NRetries <= 0 {
		opts.NRetries = DefaultNRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	recvBuf := make([]byte, BufferSizeMax)

	for attempt := 0; attempt < opts.NRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Ack{}, Errorf("Exchange", KindTimeout, err)
		}

		id := e.ids.Next()
		req := buildRequest(id)

		if attempt > 0 {
			e.log.Debug().Int("attempt", attempt).Uint16("id", id).Msg("retransmitting request")
		}

		// Arm this attempt's deadline before writing, so an expired deadline
		// left over from the previous attempt's Read cannot fail the Write.
		deadline := time.Now().Add(opts.Timeout)
		if err := e.Transport.SetDeadline(deadline); err != nil {
			return Ack{}, Errorf("Exchange", KindUnknown, err)
		}

		if _, err := e.Transport.Write(req); err != nil {
			return Ack{}, Errorf("Exchange", KindUnknown, err)
		}

		for {
			if err := e.Transport.SetDeadline(deadline); err != nil {
				return Ack{}, Errorf("Exchange", KindUnknown, err)
			}

			n, err := e.Transport.Read(recvBuf)
			if err != nil {
				if isTimeout(err) {
					e.log.Debug().Int("attempt", attempt).Uint16("id", id).Msg("exchange attempt timed out")
					break // fall through to the outer retry loop
				}
				return Ack{}, Errorf("Exchange", KindUnknown, err)
			}

			ack := ParseAck(recvBuf[:n])
			if ack.ID != id {
				continue // stale or unrelated reply, keep waiting on this attempt
			}

			if ack.Type == PacketTypePendingAck {
				ext := time.Duration(ack.PendingAckExtensionMS()) * time.Millisecond
				if ext > 0 {
					deadline = time.Now().Add(ext)
					e.log.Debug().Uint16("id", id).Dur("extension", ext).Msg("pending-ack extended deadline")
				}
				continue
			}

			if ack.Type == PacketTypeErrorAck {
				return ack, Errorf("Exchange", KindProtocolError, errString(ErrorFlagsToString(ack.ErrorCode)))
			}

			if ack.Command != want || ack.Length < minAckSize-HeaderSize {
				continue
			}

			return ack, nil
		}
	}

	e.log.Warn().Int("retries", opts.NRetries).Uint16("command", uint16(want)).Msg("exchange exhausted retries")
	return Ack{}, Errorf("Exchange", KindTimeout, nil)
}

type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	te, ok := err.(timeoutError)
	return ok && te.Timeout()
}

type errString string

func (e errString) Error() string { return string(e) }

var _ Transport = (*net.UDPConn)(nil)
