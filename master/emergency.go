package master

import (
	"context"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
)

// startEmergencyWatcher forwards the CoE emergencies of the engine handle to the diagnostics channel.
// Engine handles that do not report emergencies are skipped.
func (s *Session) startEmergencyWatcher(st *sessionState) {
	src, ok := st.master.(engine.EmergencySource)
	if !ok {
		return
	}

	ch := st.cfg.Diagnostics()
	err := st.tasks.Go("emergency", func(ctx context.Context) error {
		emergencies := src.Emergencies()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-emergencies:
				if !ok {
					return nil
				}
				ch.SetEmergency(diag.Emergency{Device: e.Device, ErrorCode: e.ErrorCode, ErrorRegister: e.ErrorRegister})
				st.logger.Warn("emergency received", "device", e.Device,
					"error_code", e.ErrorCode, "error_register", e.ErrorRegister)
			}
		}
	}, nil)
	if err != nil {
		st.logger.Warn("emergency watcher not started", "error", err)
	}
}
