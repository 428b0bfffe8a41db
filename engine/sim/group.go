package sim

import (
	"context"

	"github.com/arloliu/go-ecat/engine"
)

type group struct {
	m       *master
	devices []*deviceHandle
}

var _ engine.Group = (*group)(nil)

func (g *group) Len() int {
	return len(g.devices)
}

func (g *group) Device(ordinal int) engine.Device {
	if ordinal < 0 || ordinal >= len(g.devices) {
		return nil
	}

	return g.devices[ordinal]
}

func (g *group) Transition(ctx context.Context, state engine.ALState) error {
	return g.m.exec(ctx, func() error {
		if err := g.m.seg.takeTransitionFault(state); err != nil {
			return err
		}

		for _, h := range g.devices {
			h.d.mu.Lock()
			h.d.setState(state)
			h.d.mu.Unlock()
		}

		return nil
	})
}

func (g *group) TxRx(ctx context.Context) (uint16, error) {
	var wkc uint16
	err := g.m.exec(ctx, func() error {
		g.m.seg.exchange.Add(1)
		for _, h := range g.devices {
			h.d.mu.Lock()
			if h.d.exchange() {
				wkc++
			}
			h.d.mu.Unlock()
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return wkc, nil
}
