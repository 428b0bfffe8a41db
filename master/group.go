package master

import (
	"context"

	"github.com/arloliu/go-ecat/engine"
)

// group is the lifecycle variant of the enumerated device set. Exactly one variant exists per session;
// transitions consume a variant and return the next one.
type group interface {
	State() State
	devices() engine.Group
}

type preOpGroup struct {
	eg engine.Group
}

type safeOpGroup struct {
	eg engine.Group
}

type opGroup struct {
	eg engine.Group
}

var (
	_ group = preOpGroup{}
	_ group = safeOpGroup{}
	_ group = opGroup{}
)

func (g preOpGroup) State() State          { return PreOpState }
func (g preOpGroup) devices() engine.Group { return g.eg }

func (g safeOpGroup) State() State          { return SafeOpState }
func (g safeOpGroup) devices() engine.Group { return g.eg }

func (g opGroup) State() State          { return OpState }
func (g opGroup) devices() engine.Group { return g.eg }

func (g preOpGroup) intoSafeOp(ctx context.Context) (safeOpGroup, error) {
	if err := g.eg.Transition(ctx, engine.ALStateSafeOp); err != nil {
		return safeOpGroup{}, err
	}

	return safeOpGroup(g), nil
}

func (g safeOpGroup) intoOp(ctx context.Context) (opGroup, error) {
	if err := g.eg.Transition(ctx, engine.ALStateOp); err != nil {
		return opGroup{}, err
	}

	return opGroup(g), nil
}

func (g safeOpGroup) intoPreOp(ctx context.Context) (preOpGroup, error) {
	if err := g.eg.Transition(ctx, engine.ALStatePreOp); err != nil {
		return preOpGroup{}, err
	}

	return preOpGroup(g), nil
}

func (g opGroup) intoSafeOp(ctx context.Context) (safeOpGroup, error) {
	if err := g.eg.Transition(ctx, engine.ALStateSafeOp); err != nil {
		return safeOpGroup{}, err
	}

	return safeOpGroup(g), nil
}

// areaSizes sums the negotiated process-data area lengths of every device.
func (g safeOpGroup) areaSizes() (inputs int, outputs int) {
	for i := 0; i < g.eg.Len(); i++ {
		d := g.eg.Device(i)
		inputs += d.InputSize()
		outputs += d.OutputSize()
	}

	return inputs, outputs
}

func (g opGroup) txRx(ctx context.Context) (uint16, error) {
	return g.eg.TxRx(ctx)
}
