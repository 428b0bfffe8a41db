package config

import (
	"strings"
	"time"
)

// Cycle interval bounds of the control loop.
const (
	DefaultCycleInterval = 1 * time.Millisecond
	MaxCycleInterval     = 1 * time.Second
)

// Normalize applies post-validation normalization.
// It is allowed to mutate cfg and must be called only after Validate.
func Normalize(cfg *File) {
	if cfg == nil {
		return
	}

	s := &cfg.Session
	if s.CycleIntervalUs == 0 {
		s.CycleIntervalUs = int(DefaultCycleInterval.Microseconds())
	}

	for i := range s.InitCommands {
		cmd := &s.InitCommands[i]
		cmd.Kind = strings.ToLower(cmd.Kind)
		if cmd.Kind == "" {
			cmd.Kind = KindSDO
		}
	}
}
