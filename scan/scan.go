package scan

import (
	"context"
	"fmt"

	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CANopen PDO assignment objects.
const (
	RxPDOAssign uint16 = 0x1C12
	TxPDOAssign uint16 = 0x1C13
)

// Base indices of the PDOs and entries synthesized from EEPROM descriptors.
const (
	eepromTxPDOBase   uint16 = 0x1A00
	eepromRxPDOBase   uint16 = 0x1600
	eepromInputEntry  uint16 = 0x6000
	eepromOutputEntry uint16 = 0x7000
)

// Discover enumerates the devices on iface through an isolated engine handle and returns their
// snapshot. opts.Isolated is forced on. The handle's wire loop runs for the duration of the discovery
// only.
func Discover(ctx context.Context, drv engine.Driver, iface string, opts engine.OpenOptions, l logger.Logger) (*Snapshot, error) {
	opts.Isolated = true
	m, err := drv.Open(iface, opts)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, iface, err)
	}
	defer m.Close()

	id := uuid.NewString()
	l = l.With("scan", id, "iface", iface)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var devices []Device
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return m.Run(gctx)
	})
	g.Go(func() error {
		// discovery done, release the wire loop
		defer stopRun()

		var err error
		devices, err = discover(gctx, m, l)

		return err
	})

	if err := g.Wait(); err != nil {
		l.Error("scan failed", "error", err)
		return nil, err
	}

	l.Info("scan completed", "devices", len(devices))

	return &Snapshot{id: id, iface: iface, devices: devices}, nil
}

func discover(ctx context.Context, m engine.Master, l logger.Logger) ([]Device, error) {
	eg, err := m.InitGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumerate, err)
	}

	devices := make([]Device, 0, eg.Len())
	for i := 0; i < eg.Len(); i++ {
		d := eg.Device(i)
		if d == nil {
			continue
		}
		devices = append(devices, describe(ctx, i, d, l))
	}

	return devices, nil
}

func describe(ctx context.Context, ordinal int, d engine.Device, l logger.Logger) Device {
	dev := Device{
		Ordinal:           ordinal,
		Name:              d.Name(),
		Identity:          d.Identity(),
		ConfiguredAddress: d.ConfiguredAddress(),
		AliasAddress:      d.AliasAddress(),
		PortCount:         d.PortCount(),
		MailboxProtocols:  d.MailboxProtocols(),
	}

	for _, sm := range []struct {
		assign uint16
		num    uint8
	}{
		{RxPDOAssign, SyncManagerOutputs},
		{TxPDOAssign, SyncManagerInputs},
	} {
		pdos, ok := readAssignedPDOs(ctx, d, sm.assign, sm.num)
		if ok {
			dev.MailboxProtocols |= engine.MailboxCoE
		}
		dev.PDOs = append(dev.PDOs, pdos...)
	}

	if len(dev.PDOs) == 0 {
		dev.PDOs = eepromPDOs(ctx, d, l.With("device", ordinal))
	}

	// failure means no DC support
	if _, err := engine.ReadRegisterU32(ctx, d, engine.RegDCSystemTime); err == nil {
		dev.DC = true
	}

	l.Debug("device discovered", "device", ordinal, "name", dev.Name, "pdos", len(dev.PDOs), "dc", dev.DC)

	return dev
}

// readAssignedPDOs walks the assignment object and the mapping objects of every assigned PDO. ok
// reports that the assignment object exists and lists at least one PDO. Unreadable PDOs and entries are
// skipped.
func readAssignedPDOs(ctx context.Context, d engine.Device, assign uint16, sm uint8) (pdos []PDO, ok bool) {
	count, err := engine.ReadSDOU8(ctx, d, assign, 0)
	if err != nil || count == 0 {
		return nil, false
	}

	for i := 1; i <= int(count); i++ {
		pdoIndex, err := engine.ReadSDOU16(ctx, d, assign, uint8(i))
		if err != nil {
			continue
		}

		pdo := PDO{Index: pdoIndex, SyncManager: sm}
		if n, err := engine.ReadSDOU8(ctx, d, pdoIndex, 0); err == nil {
			for j := 1; j <= int(n); j++ {
				mapping, err := engine.ReadSDOU32(ctx, d, pdoIndex, uint8(j))
				if err != nil {
					continue
				}
				pdo.Entries = append(pdo.Entries, entryFromMapping(mapping))
			}
		}
		pdos = append(pdos, pdo)
	}

	return pdos, true
}

// entryFromMapping decodes a PDO mapping value: index << 16 | sub-index << 8 | bit length.
func entryFromMapping(mapping uint32) Entry {
	e := Entry{
		Index:    uint16(mapping >> 16),
		SubIndex: uint8(mapping >> 8),
		BitLen:   uint8(mapping),
	}
	e.DataType = DataTypeForBitLen(e.BitLen)
	e.Name = fmt.Sprintf("Entry_0x%04x_%02x", e.Index, e.SubIndex)

	return e
}

// eepromPDOs synthesizes one single-entry PDO per EEPROM PDO descriptor, inputs first.
func eepromPDOs(ctx context.Context, d engine.Device, l logger.Logger) []PDO {
	var pdos []PDO

	if inputs, err := d.EEPROMPDOs(ctx, engine.Inputs); err == nil {
		for n, desc := range inputs {
			pdos = append(pdos, synthesizePDO(eepromTxPDOBase, eepromInputEntry, SyncManagerInputs, "Input_PDO_%d", n, desc))
		}
	} else {
		l.Debug("eeprom input pdos unavailable", "error", err)
	}

	if outputs, err := d.EEPROMPDOs(ctx, engine.Outputs); err == nil {
		for n, desc := range outputs {
			pdos = append(pdos, synthesizePDO(eepromRxPDOBase, eepromOutputEntry, SyncManagerOutputs, "Output_PDO_%d", n, desc))
		}
	} else {
		l.Debug("eeprom output pdos unavailable", "error", err)
	}

	return pdos
}

func synthesizePDO(pdoBase uint16, entryBase uint16, sm uint8, nameFormat string, n int, desc engine.PDODescriptor) PDO {
	return PDO{
		Index:       pdoBase + uint16(n),
		SyncManager: sm,
		Entries: []Entry{{
			Index:    entryBase + uint16(n),
			BitLen:   uint8(desc.BitLen),
			DataType: dataTypeForPDOBits(desc.BitLen),
			Name:     fmt.Sprintf(nameFormat, n),
		}},
	}
}
