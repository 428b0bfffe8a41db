package master

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-ecat/engine"
)

// MailboxStatus is the outcome of a mailbox status check.
type MailboxStatus int

const (
	// MailboxEmpty indicates that the mailbox-full bit is clear.
	MailboxEmpty MailboxStatus = iota
	// MailboxNewMail indicates that the mailbox holds a frame not seen before.
	MailboxNewMail
	// MailboxRetryExhausted indicates that the mailbox stayed full with an unchanged toggle bit, or could
	// not be read, for every attempt.
	MailboxRetryExhausted
	// MailboxUnavailable indicates that the network is flagged unhealthy and the register was not read.
	MailboxUnavailable
)

// String returns string representation of the status.
func (m MailboxStatus) String() string {
	switch m {
	case MailboxEmpty:
		return "empty"
	case MailboxNewMail:
		return "new-mail"
	case MailboxRetryExhausted:
		return "retry-exhausted"
	case MailboxUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

const (
	// MailboxAttempts is the number of status register reads of a resilient mailbox check.
	MailboxAttempts = 3
	// NoToggleState is passed as last toggle bit when no previous mailbox state is known.
	NoToggleState uint8 = 2
)

const mailboxPollTask = "mailbox-poll"

// mailboxPoll is the cached result of the background poller for one device.
type mailboxPoll struct {
	status MailboxStatus
	toggle uint8
}

// CheckMailbox reads the mailbox status register at statusAddr once and reports whether the
// mailbox-full bit is set.
//
// It returns MailboxUnavailable with ErrUnavailable, without reading, while the network is unhealthy.
func (s *Session) CheckMailbox(device int, statusAddr uint16) (MailboxStatus, error) {
	if !s.healthy.Load() {
		return MailboxUnavailable, s.fail(ErrUnavailable)
	}

	status := MailboxEmpty
	err := s.withDevice(device, 0, func(ctx context.Context, d engine.Device) error {
		s.metrics.incMailboxCheckCount()
		v, err := engine.ReadRegisterU8(ctx, d, statusAddr)
		if err != nil {
			return fmt.Errorf("%w: mailbox status 0x%04X of device %d: %w", ErrProtocol, statusAddr, device, err)
		}
		if v&engine.MailboxFullMask != 0 {
			status = MailboxNewMail
		}

		return nil
	})
	if err != nil {
		return MailboxEmpty, s.fail(err)
	}

	return status, nil
}

// CheckMailboxResilient reports whether the mailbox holds unread mail that was not seen before.
//
// lastToggle is the toggle bit observed with the previous mail, or any value above 1 (NoToggleState)
// when there is none. Up to MailboxAttempts reads are issued back to back: a clear full bit reports
// MailboxEmpty, a set full bit with a toggle differing from lastToggle reports MailboxNewMail, and a set
// full bit with the same toggle or a failed read is retried. Exhausting the attempts returns
// MailboxRetryExhausted with ErrRetryExhausted.
//
// It returns MailboxUnavailable with ErrUnavailable, without reading, while the network is unhealthy.
func (s *Session) CheckMailboxResilient(device int, statusAddr uint16, lastToggle uint8) (MailboxStatus, error) {
	if !s.healthy.Load() {
		return MailboxUnavailable, s.fail(ErrUnavailable)
	}

	var status MailboxStatus
	err := s.withDevice(device, 0, func(ctx context.Context, d engine.Device) error {
		status, _ = s.resolveMailbox(ctx, d, statusAddr, lastToggle)
		return nil
	})
	if err != nil {
		return MailboxEmpty, s.fail(err)
	}

	if status == MailboxRetryExhausted {
		return status, s.fail(fmt.Errorf("%w: mailbox status 0x%04X of device %d", ErrRetryExhausted, statusAddr, device))
	}

	return status, nil
}

// resolveMailbox runs the bounded toggle-bit check and returns the status with the last toggle bit read.
func (s *Session) resolveMailbox(ctx context.Context, d engine.Device, statusAddr uint16, lastToggle uint8) (MailboxStatus, uint8) {
	s.metrics.incMailboxCheckCount()

	toggle := lastToggle
	for attempt := 0; attempt < MailboxAttempts; attempt++ {
		if attempt > 0 {
			s.metrics.incMailboxRetryCount()
		}

		v, err := engine.ReadRegisterU8(ctx, d, statusAddr)
		if err != nil {
			continue
		}
		if v&engine.MailboxFullMask == 0 {
			return MailboxEmpty, toggle
		}

		toggle = (v & engine.MailboxToggleMask) >> 1
		if lastToggle > 1 || toggle != lastToggle {
			return MailboxNewMail, toggle
		}
	}
	s.metrics.incMailboxExhaustedCount()

	return MailboxRetryExhausted, toggle
}

// ConfigureMailboxPolling sets the interval of the background mailbox poller. Zero disables polling.
//
// While enabled, the poller checks the SM1 status register of every device with a mailbox through the
// resilient check and caches the outcome, see PendingMail.
func (s *Session) ConfigureMailboxPolling(interval time.Duration) error {
	if err := validatePollInterval(interval); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st == nil {
		return s.fail(ErrNotInitialized)
	}

	if st.tasks.HasInterval(mailboxPollTask) {
		_ = st.tasks.StopInterval(mailboxPollTask)
	}
	st.pollGen++
	st.mailbox.Clear()
	st.pollInterval = interval

	if interval == 0 {
		st.logger.Info("mailbox polling disabled")
		return nil
	}

	if err := s.startMailboxPoller(st); err != nil {
		return s.fail(fmt.Errorf("%w: start mailbox poller: %w", ErrProtocol, err))
	}

	return nil
}

// MailboxPollInterval returns the interval of the background mailbox poller, zero when disabled.
func (s *Session) MailboxPollInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return 0
	}

	return s.state.pollInterval
}

// PendingMail returns the last status the background poller observed for a device. ok is false when
// the device has not been polled.
func (s *Session) PendingMail(device int) (status MailboxStatus, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return MailboxEmpty, false
	}

	poll, ok := s.state.mailbox.Load(device)
	if !ok {
		return MailboxEmpty, false
	}

	return poll.status, true
}

// startMailboxPoller must be called with s.mu held.
func (s *Session) startMailboxPoller(st *sessionState) error {
	st.logger.Info("mailbox polling enabled", "interval", st.pollInterval)

	gen := st.pollGen

	return st.tasks.StartInterval(mailboxPollTask, func() bool {
		return s.pollMailboxes(st, gen)
	}, st.pollInterval, false)
}

// pollMailboxes polls every device once. It returns false when st is no longer the current session or
// the poller was reconfigured.
//
// A device cached as MailboxNewMail stays MailboxNewMail while its full bit is set with the same toggle
// bit, that is until the mail is read. Only then is the resilient check run again.
func (s *Session) pollMailboxes(st *sessionState, gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != st || st.pollGen != gen {
		return false
	}
	if !s.healthy.Load() {
		return true
	}

	eg := st.group.devices()
	for i := 0; i < eg.Len(); i++ {
		if st.ctx.Err() != nil {
			return false
		}

		d := eg.Device(i)
		if d == nil || d.MailboxProtocols() == 0 {
			continue
		}

		last := NoToggleState
		prev, seen := st.mailbox.Load(i)
		if seen && prev.status != MailboxEmpty {
			last = prev.toggle
		}
		if seen && prev.status == MailboxNewMail && stillPending(st.ctx, d, prev.toggle) {
			continue
		}

		status, toggle := s.resolveMailbox(st.ctx, d, engine.RegSM1Status, last)
		if status == MailboxRetryExhausted {
			st.logger.Debug("mailbox status unresolved", "device", i)
		}
		st.mailbox.Store(i, mailboxPoll{status: status, toggle: toggle})
	}

	return true
}

// stillPending reports whether the SM1 status of d still shows the mail seen with toggle.
func stillPending(ctx context.Context, d engine.Device, toggle uint8) bool {
	v, err := engine.ReadRegisterU8(ctx, d, engine.RegSM1Status)
	if err != nil {
		return false
	}

	return v&engine.MailboxFullMask != 0 && (v&engine.MailboxToggleMask)>>1 == toggle
}
