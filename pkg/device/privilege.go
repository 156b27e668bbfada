package device

import (
	"context"
	"sync"
	"time"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// TakeControl sets the control bit of the control-channel privilege
// register. This is advisory: a device is free to deny it, and callers
// decide whether to treat failure as fatal.
func (s *Session) TakeControl(_ context.Context) error {
	if err := s.writeRegister(gvcp.RegControlChannelPrivilege, gvcp.PrivilegeControl); err != nil {
		return gvcp.Errorf("TakeControl", gvcp.KindNotController, err)
	}
	s.setController(true)
	return nil
}

// LeaveControl clears the privilege register.
func (s *Session) LeaveControl(_ context.Context) error {
	err := s.writeRegister(gvcp.RegControlChannelPrivilege, 0)
	s.setController(false)
	return err
}

// lease is the cancellation handle for the background heartbeat
// goroutine that keeps control privilege alive.
type lease struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (l *lease) stop() {
	l.cancel()
	l.wg.Wait()
}

// startHeartbeat launches the goroutine that polls the control-channel
// privilege register at cfg.HeartbeatPeriod. Control loss fires
// s.onControlLost at most once per loss, from this goroutine only
// (single consumer).
func startHeartbeat(s *Session) *lease {
	ctx, cancel := context.WithCancel(context.Background())
	l := &lease{cancel: cancel}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		heartbeatLoop(ctx, s)
	}()

	return l
}

func heartbeatLoop(ctx context.Context, s *Session) {
	period := s.cfg.HeartbeatPeriod()
	if period <= 0 {
		period = gvcp.DefaultHeartbeatPeriod
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsController() {
				continue // nothing to watch until control is retaken
			}
			value, ok := heartbeatPoll(ctx, s)
			if !ok {
				continue // read never succeeded within the retry budget; try again next tick
			}
			// Gated on IsController() above, so this can only fire on the
			// falling edge: the next tick will see IsController() false and
			// skip polling until control is retaken.
			if value&(gvcp.PrivilegeControl|gvcp.PrivilegeExclusive) == 0 {
				notifyControlLost(s)
			}
		}
	}
}

// heartbeatPoll retries the privilege read for up to
// gvcp.HeartbeatRetryTimeout at gvcp.HeartbeatRetryDelay intervals, since
// a single dropped UDP datagram shouldn't be mistaken for control loss.
func heartbeatPoll(ctx context.Context, s *Session) (uint32, bool) {
	deadline := time.Now().Add(gvcp.HeartbeatRetryTimeout)
	for {
		value, err := s.readRegister(gvcp.RegControlChannelPrivilege)
		if err == nil {
			return value, true
		}
		if time.Now().After(deadline) {
			return 0, false
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-time.After(gvcp.HeartbeatRetryDelay):
		}
	}
}

func notifyControlLost(s *Session) {
	s.setController(false)

	s.stateMu.RLock()
	fn := s.onControlLost
	s.stateMu.RUnlock()

	if fn != nil {
		fn()
	}
}
