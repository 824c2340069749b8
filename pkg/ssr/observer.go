package ssr

import "context"

// Phase names a step of Initialize.
type Phase string

const (
	PhaseInitialProps Phase = "initial_props"
	PhaseDrain        Phase = "drain"
	PhaseExtract      Phase = "extract"
)

// Observer is notified of initialization phases. StartPhase returns the
// context the phase runs with and a function called with the phase result.
type Observer interface {
	StartPhase(ctx context.Context, page string, phase Phase) (context.Context, func(error))
	SnapshotExtracted(ctx context.Context, page string, records int)
}

type nopObserver struct{}

func (nopObserver) StartPhase(ctx context.Context, _ string, _ Phase) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (nopObserver) SnapshotExtracted(context.Context, string, int) {}

// Observers combines several observers into one. Phases are started in
// order and ended in reverse order.
func Observers(obs ...Observer) Observer {
	list := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) StartPhase(ctx context.Context, page string, phase Phase) (context.Context, func(error)) {
	ends := make([]func(error), len(m))
	for i, o := range m {
		ctx, ends[i] = o.StartPhase(ctx, page, phase)
	}
	return ctx, func(err error) {
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i](err)
		}
	}
}

func (m multiObserver) SnapshotExtracted(ctx context.Context, page string, records int) {
	for _, o := range m {
		o.SnapshotExtracted(ctx, page, records)
	}
}
