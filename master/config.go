package master

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/logger"
)

// Default engine timeouts. A zero value passed to the corresponding option selects the default.
const (
	DefaultPDUTimeout             = 30 * time.Millisecond
	DefaultStateTransitionTimeout = 5 * time.Second
	DefaultMailboxResponseTimeout = 1 * time.Second
	DefaultEEPROMTimeout          = 100 * time.Millisecond

	DefaultPDURetries = 1
)

// Option range limits.
const (
	MinPDUTimeout = 1 * time.Millisecond
	MaxPDUTimeout = 10 * time.Second

	MinStateTransitionTimeout = 10 * time.Millisecond
	MaxStateTransitionTimeout = 60 * time.Second

	MinMailboxResponseTimeout = 10 * time.Millisecond
	MaxMailboxResponseTimeout = 60 * time.Second

	MinEEPROMTimeout = 1 * time.Millisecond
	MaxEEPROMTimeout = 10 * time.Second

	MaxPDURetries = 16

	MinMailboxPollInterval = 1 * time.Millisecond
	MaxMailboxPollInterval = 1 * time.Minute

	// MaxInterfaceLen is the longest accepted network interface name.
	MaxInterfaceLen = 256
	// MaxInitCommands is the largest number of init commands a session accepts.
	MaxInitCommands = 1024
)

// InitCommandKind selects how an init command is applied.
type InitCommandKind uint8

const (
	// InitSDO writes Value to object Index:SubIndex.
	InitSDO InitCommandKind = 0
	// InitRegister writes Value to the ESC register at Index.
	InitRegister InitCommandKind = 1
)

// String returns string representation of the kind.
func (k InitCommandKind) String() string {
	switch k {
	case InitSDO:
		return "sdo"
	case InitRegister:
		return "register"
	default:
		return "unknown"
	}
}

// InitCommand is a configuration write applied to one device after enumeration, before the group is
// published.
type InitCommand struct {
	// Device is the ordinal of the target device.
	Device   uint16
	Kind     InitCommandKind
	Index    uint16
	SubIndex uint8
	// Value is written as four little-endian bytes.
	Value [4]byte
}

// Config holds the configuration of a master session.
type Config struct {
	iface string

	timeouts engine.Timeouts
	retries  int

	initCommands        []InitCommand
	mailboxPollInterval time.Duration

	logger logger.Logger
	diag   *diag.Channel
}

// NewConfig creates a new session configuration bound to the network interface iface.
//
// opts are functional options applied in order; see With* functions. Invalid arguments are reported
// with an error wrapping ErrInvalidArgument.
func NewConfig(iface string, opts ...ConnOption) (*Config, error) {
	cfg := &Config{
		timeouts: engine.Timeouts{
			PDU:             DefaultPDUTimeout,
			StateTransition: DefaultStateTransitionTimeout,
			MailboxResponse: DefaultMailboxResponseTimeout,
			EEPROM:          DefaultEEPROMTimeout,
		},
		retries: DefaultPDURetries,
		logger:  logger.GetLogger(),
		diag:    diag.Default(),
	}

	if err := cfg.setInterface(iface); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ValidateInterface checks that iface is usable as a network interface name.
func ValidateInterface(iface string) error {
	switch {
	case iface == "":
		return fmt.Errorf("%w: empty interface name", ErrInvalidArgument)
	case len(iface) > MaxInterfaceLen:
		return fmt.Errorf("%w: interface name longer than %d bytes", ErrInvalidArgument, MaxInterfaceLen)
	case !utf8.ValidString(iface):
		return fmt.Errorf("%w: interface name is not valid UTF-8", ErrInvalidArgument)
	case strings.IndexByte(iface, 0) >= 0:
		return fmt.Errorf("%w: interface name contains NUL", ErrInvalidArgument)
	}

	return nil
}

func (cfg *Config) setInterface(iface string) error {
	if err := ValidateInterface(iface); err != nil {
		return err
	}
	cfg.iface = iface

	return nil
}

// --- Getters ---

// Interface returns the network interface name.
func (cfg *Config) Interface() string { return cfg.iface }

// Timeouts returns the engine timeouts.
func (cfg *Config) Timeouts() engine.Timeouts { return cfg.timeouts }

// PDURetries returns the number of times a timed out PDU is re-sent.
func (cfg *Config) PDURetries() int { return cfg.retries }

// InitCommands returns a copy of the init commands.
func (cfg *Config) InitCommands() []InitCommand {
	return append([]InitCommand(nil), cfg.initCommands...)
}

// MailboxPollInterval returns the background mailbox polling interval, zero when disabled.
func (cfg *Config) MailboxPollInterval() time.Duration { return cfg.mailboxPollInterval }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Diagnostics returns the diagnostics channel receiving the last error and emergency.
func (cfg *Config) Diagnostics() *diag.Channel { return cfg.diag }

func (cfg *Config) openOptions(isolated bool) engine.OpenOptions {
	return engine.OpenOptions{Timeouts: cfg.timeouts, Retries: cfg.retries, Isolated: isolated}
}

// --- ConnOption ---

// ConnOption is a functional option for configuring a Config.
type ConnOption interface {
	apply(*Config) error
}

type connOptFunc func(*Config) error

func (f connOptFunc) apply(cfg *Config) error { return f(cfg) }

func durationOption(name string, d, def, lo, hi time.Duration, set func(time.Duration)) error {
	if d == 0 {
		set(def)
		return nil
	}
	if d < lo || d > hi {
		return fmt.Errorf("%w: %s timeout %v out of range [%v, %v]", ErrInvalidArgument, name, d, lo, hi)
	}
	set(d)

	return nil
}

// WithPDUTimeout sets the PDU timeout, 1ms–10s. Zero selects DefaultPDUTimeout.
func WithPDUTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		return durationOption("pdu", d, DefaultPDUTimeout, MinPDUTimeout, MaxPDUTimeout,
			func(v time.Duration) { cfg.timeouts.PDU = v })
	})
}

// WithStateTransitionTimeout sets the state transition timeout, 10ms–60s. Zero selects the default.
func WithStateTransitionTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		return durationOption("state transition", d, DefaultStateTransitionTimeout,
			MinStateTransitionTimeout, MaxStateTransitionTimeout,
			func(v time.Duration) { cfg.timeouts.StateTransition = v })
	})
}

// WithMailboxResponseTimeout sets the mailbox response timeout, 10ms–60s. Zero selects the default.
func WithMailboxResponseTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		return durationOption("mailbox response", d, DefaultMailboxResponseTimeout,
			MinMailboxResponseTimeout, MaxMailboxResponseTimeout,
			func(v time.Duration) { cfg.timeouts.MailboxResponse = v })
	})
}

// WithEEPROMTimeout sets the EEPROM access timeout, 1ms–10s. Zero selects the default.
func WithEEPROMTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		return durationOption("eeprom", d, DefaultEEPROMTimeout, MinEEPROMTimeout, MaxEEPROMTimeout,
			func(v time.Duration) { cfg.timeouts.EEPROM = v })
	})
}

// WithPDURetries sets the number of times a timed out PDU is re-sent, 0–16.
func WithPDURetries(n int) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if n < 0 || n > MaxPDURetries {
			return fmt.Errorf("%w: pdu retries %d out of range [0, %d]", ErrInvalidArgument, n, MaxPDURetries)
		}
		cfg.retries = n

		return nil
	})
}

// WithInitCommands sets the writes applied to devices after enumeration.
func WithInitCommands(cmds ...InitCommand) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if len(cmds) > MaxInitCommands {
			return fmt.Errorf("%w: %d init commands exceed maximum %d", ErrInvalidArgument, len(cmds), MaxInitCommands)
		}
		for i, cmd := range cmds {
			if cmd.Kind != InitSDO && cmd.Kind != InitRegister {
				return fmt.Errorf("%w: init command %d has unknown kind %d", ErrInvalidArgument, i, cmd.Kind)
			}
		}
		cfg.initCommands = append([]InitCommand(nil), cmds...)

		return nil
	})
}

// WithMailboxPollInterval enables background mailbox polling at the given interval, 1ms–1m.
// Zero disables polling, which is the default.
func WithMailboxPollInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if err := validatePollInterval(d); err != nil {
			return err
		}
		cfg.mailboxPollInterval = d

		return nil
	})
}

func validatePollInterval(d time.Duration) error {
	if d == 0 {
		return nil
	}
	if d < MinMailboxPollInterval || d > MaxMailboxPollInterval {
		return fmt.Errorf("%w: mailbox poll interval %v out of range [%v, %v]",
			ErrInvalidArgument, d, MinMailboxPollInterval, MaxMailboxPollInterval)
	}

	return nil
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("%w: logger must not be nil", ErrInvalidArgument)
		}
		cfg.logger = l

		return nil
	})
}

// WithDiagnostics sets the channel receiving the last error and emergency. The default is diag.Default().
func WithDiagnostics(ch *diag.Channel) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if ch == nil {
			return fmt.Errorf("%w: diagnostics channel must not be nil", ErrInvalidArgument)
		}
		cfg.diag = ch

		return nil
	})
}
