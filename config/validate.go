package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-ecat/master"
)

// Init command kinds.
const (
	KindSDO      = "sdo"
	KindRegister = "register"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *File) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil file", ErrInvalid)
	}

	s := cfg.Session
	if err := master.ValidateInterface(s.Interface); err != nil {
		return fmt.Errorf("%w: session.interface: %w", ErrInvalid, err)
	}

	// ------------------------------------------------------------
	// TIMEOUTS
	// ------------------------------------------------------------

	timeouts := []struct {
		key    string
		ms     int
		lo, hi time.Duration
	}{
		{"pdu_timeout_ms", s.PDUTimeoutMs, master.MinPDUTimeout, master.MaxPDUTimeout},
		{"state_transition_timeout_ms", s.StateTransitionTimeoutMs, master.MinStateTransitionTimeout, master.MaxStateTransitionTimeout},
		{"mailbox_response_timeout_ms", s.MailboxResponseTimeoutMs, master.MinMailboxResponseTimeout, master.MaxMailboxResponseTimeout},
		{"eeprom_timeout_ms", s.EEPROMTimeoutMs, master.MinEEPROMTimeout, master.MaxEEPROMTimeout},
		{"mailbox_poll_interval_ms", s.MailboxPollIntervalMs, master.MinMailboxPollInterval, master.MaxMailboxPollInterval},
	}
	for _, to := range timeouts {
		// zero selects the default
		if to.ms == 0 {
			continue
		}
		d := time.Duration(to.ms) * time.Millisecond
		if to.ms < 0 || d < to.lo || d > to.hi {
			return fmt.Errorf("%w: session.%s %d out of range [%d, %d]",
				ErrInvalid, to.key, to.ms, to.lo.Milliseconds(), to.hi.Milliseconds())
		}
	}

	if s.PDURetries != nil && (*s.PDURetries < 0 || *s.PDURetries > master.MaxPDURetries) {
		return fmt.Errorf("%w: session.pdu_retries %d out of range [0, %d]", ErrInvalid, *s.PDURetries, master.MaxPDURetries)
	}

	if s.CycleIntervalUs < 0 || time.Duration(s.CycleIntervalUs)*time.Microsecond > MaxCycleInterval {
		return fmt.Errorf("%w: session.cycle_interval_us %d out of range [0, %d]",
			ErrInvalid, s.CycleIntervalUs, MaxCycleInterval.Microseconds())
	}

	// ------------------------------------------------------------
	// INIT COMMANDS
	// ------------------------------------------------------------

	if len(s.InitCommands) > master.MaxInitCommands {
		return fmt.Errorf("%w: %d init commands exceed maximum %d", ErrInvalid, len(s.InitCommands), master.MaxInitCommands)
	}
	for i, cmd := range s.InitCommands {
		switch strings.ToLower(cmd.Kind) {
		case "", KindSDO, KindRegister:
		default:
			return fmt.Errorf("%w: init_commands[%d]: unknown kind %q", ErrInvalid, i, cmd.Kind)
		}
		if len(cfg.Topology) > 0 && int(cmd.Device) >= len(cfg.Topology) {
			return fmt.Errorf("%w: init_commands[%d]: device %d outside topology of %d devices",
				ErrInvalid, i, cmd.Device, len(cfg.Topology))
		}
	}

	// ------------------------------------------------------------
	// TOPOLOGY
	// ------------------------------------------------------------

	for i, d := range cfg.Topology {
		if d.VendorID == 0 {
			return fmt.Errorf("%w: topology[%d] %q: vendor_id is required", ErrInvalid, i, d.Name)
		}
	}

	return nil
}
