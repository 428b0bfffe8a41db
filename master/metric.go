package master

import "sync/atomic"

// SessionMetrics contains atomic metrics for a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// CycleCount indicates the number of successful cyclic exchanges.
	CycleCount atomic.Uint64
	// CycleErrCount indicates the number of failed cyclic exchanges.
	CycleErrCount atomic.Uint64
	// LastWorkingCounter is the working counter of the last successful exchange.
	LastWorkingCounter atomic.Uint32
	// ShortWorkingCounterCount indicates the number of exchanges whose working counter was below the
	// expected working counter.
	ShortWorkingCounterCount atomic.Uint64

	// TransitionCount indicates the number of completed engine state transitions.
	TransitionCount atomic.Uint64
	// TransitionErrCount indicates the number of failed engine state transitions.
	TransitionErrCount atomic.Uint64

	// MailboxCheckCount indicates the number of mailbox status checks.
	MailboxCheckCount atomic.Uint64
	// MailboxRetryCount indicates the number of mailbox status re-reads.
	MailboxRetryCount atomic.Uint64
	// MailboxExhaustedCount indicates the number of mailbox checks that ran out of attempts.
	MailboxExhaustedCount atomic.Uint64
}

func (m *SessionMetrics) incCycleCount(wkc uint16, expected uint16) {
	m.CycleCount.Add(1)
	m.LastWorkingCounter.Store(uint32(wkc))
	if wkc < expected {
		m.ShortWorkingCounterCount.Add(1)
	}
}

func (m *SessionMetrics) incCycleErrCount() {
	m.CycleErrCount.Add(1)
}

func (m *SessionMetrics) incTransitionCount() {
	m.TransitionCount.Add(1)
}

func (m *SessionMetrics) incTransitionErrCount() {
	m.TransitionErrCount.Add(1)
}

func (m *SessionMetrics) incMailboxCheckCount() {
	m.MailboxCheckCount.Add(1)
}

func (m *SessionMetrics) incMailboxRetryCount() {
	m.MailboxRetryCount.Add(1)
}

func (m *SessionMetrics) incMailboxExhaustedCount() {
	m.MailboxExhaustedCount.Add(1)
}
