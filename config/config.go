// Package config loads the YAML session file of a master: the network interface, engine timeouts, init
// commands, mailbox polling, cycle interval and the expected topology.
//
// A file is processed in three steps: Load decodes it, Validate checks it without mutating it and
// Normalize fills in defaults. Options then converts it into master.ConnOption values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid indicates a malformed session file.
var ErrInvalid = errors.New("config: invalid session file")

// File is the root of a session file.
type File struct {
	Session  SessionConfig  `yaml:"session"`
	Topology []DeviceConfig `yaml:"topology"`
}

// ---- SESSION ----

type SessionConfig struct {
	Interface string `yaml:"interface"`

	// Timeouts in milliseconds, 0 selects the master default.
	PDUTimeoutMs             int  `yaml:"pdu_timeout_ms"`
	StateTransitionTimeoutMs int  `yaml:"state_transition_timeout_ms"`
	MailboxResponseTimeoutMs int  `yaml:"mailbox_response_timeout_ms"`
	EEPROMTimeoutMs          int  `yaml:"eeprom_timeout_ms"`
	PDURetries               *int `yaml:"pdu_retries"`

	// MailboxPollIntervalMs enables background mailbox polling when nonzero.
	MailboxPollIntervalMs int `yaml:"mailbox_poll_interval_ms"`

	// CycleIntervalUs is the period of the control loop driving the cyclic exchange.
	CycleIntervalUs int `yaml:"cycle_interval_us"`

	InitCommands []InitCommandConfig `yaml:"init_commands"`
}

// ---- INIT COMMANDS ----

// InitCommandConfig is one configuration write applied while the devices are in PRE-OP.
type InitCommandConfig struct {
	Device   uint16 `yaml:"device"`
	Kind     string `yaml:"kind"` // "sdo" (default) or "register"
	Index    uint16 `yaml:"index"`
	SubIndex uint8  `yaml:"sub_index"`
	// Value is written as 4 little-endian bytes.
	Value uint32 `yaml:"value"`
}

// ---- TOPOLOGY ----

// DeviceConfig is one expected device, in enumeration order.
type DeviceConfig struct {
	Name         string `yaml:"name"`
	VendorID     uint32 `yaml:"vendor_id"`
	ProductCode  uint32 `yaml:"product_code"`
	Revision     uint32 `yaml:"revision"`
	SerialNumber uint32 `yaml:"serial_number"` // 0 matches any device
}

// Load reads and decodes the session file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a session file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return &f, nil
}
