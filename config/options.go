package config

import (
	"encoding/binary"
	"time"

	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/master"
)

// Options converts the session section into master options. cfg must be validated and normalized.
func (cfg *File) Options() []master.ConnOption {
	s := cfg.Session
	opts := []master.ConnOption{
		master.WithPDUTimeout(millis(s.PDUTimeoutMs)),
		master.WithStateTransitionTimeout(millis(s.StateTransitionTimeoutMs)),
		master.WithMailboxResponseTimeout(millis(s.MailboxResponseTimeoutMs)),
		master.WithEEPROMTimeout(millis(s.EEPROMTimeoutMs)),
		master.WithMailboxPollInterval(millis(s.MailboxPollIntervalMs)),
	}
	if s.PDURetries != nil {
		opts = append(opts, master.WithPDURetries(*s.PDURetries))
	}
	if len(s.InitCommands) > 0 {
		opts = append(opts, master.WithInitCommands(cfg.InitCommands()...))
	}

	return opts
}

// InitCommands returns the init commands in master form.
func (cfg *File) InitCommands() []master.InitCommand {
	cmds := make([]master.InitCommand, 0, len(cfg.Session.InitCommands))
	for _, c := range cfg.Session.InitCommands {
		cmd := master.InitCommand{
			Device:   c.Device,
			Kind:     master.InitSDO,
			Index:    c.Index,
			SubIndex: c.SubIndex,
		}
		if c.Kind == KindRegister {
			cmd.Kind = master.InitRegister
		}
		binary.LittleEndian.PutUint32(cmd.Value[:], c.Value)
		cmds = append(cmds, cmd)
	}

	return cmds
}

// Identities returns the expected identities in enumeration order, nil when the file lists none.
func (cfg *File) Identities() []engine.Identity {
	if len(cfg.Topology) == 0 {
		return nil
	}

	ids := make([]engine.Identity, len(cfg.Topology))
	for i, d := range cfg.Topology {
		ids[i] = engine.Identity{
			VendorID:     d.VendorID,
			ProductCode:  d.ProductCode,
			Revision:     d.Revision,
			SerialNumber: d.SerialNumber,
		}
	}

	return ids
}

// CycleInterval returns the control loop period.
func (cfg *File) CycleInterval() time.Duration {
	if cfg.Session.CycleIntervalUs <= 0 {
		return DefaultCycleInterval
	}

	return time.Duration(cfg.Session.CycleIntervalUs) * time.Microsecond
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
