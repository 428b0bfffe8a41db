package master

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/scan"
)

// Scan discovers the devices on cfg's interface through an isolated engine handle and returns their
// snapshot. Scanning leaves the shared frame storage untouched, so a session can still be initialized
// afterwards.
//
// Scan refuses with ErrResourceBusy while the session is initialized. The session lock is only held for
// that check, so a long scan does not block Initialize or other session calls.
func (s *Session) Scan(cfg *Config) (*scan.Snapshot, error) {
	if cfg == nil {
		return nil, s.fail(fmt.Errorf("%w: nil config", ErrInvalidArgument))
	}

	s.mu.RLock()
	active := s.state
	s.mu.RUnlock()

	if active != nil {
		return nil, s.fail(fmt.Errorf("%w: session active on %s", ErrResourceBusy, active.cfg.Interface()))
	}

	s.diag.Store(cfg.Diagnostics())
	if err := ValidateInterface(cfg.Interface()); err != nil {
		return nil, s.fail(err)
	}

	snap, err := scan.Discover(context.Background(), s.driver, cfg.Interface(), cfg.openOptions(true), cfg.GetLogger())
	if err != nil {
		if errors.Is(err, engine.ErrStorageBusy) {
			return nil, s.fail(fmt.Errorf("%w: %w", ErrResourceBusy, err))
		}
		return nil, s.fail(fmt.Errorf("%w: %w", ErrProtocol, err))
	}

	return snap, nil
}
