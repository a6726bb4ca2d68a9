package connstate

// CatchUpGate is the optional adapter installed in front of
// ConnectionStateCore when Config's "catch_up_before_declaring_connected"
// flag is true. It presents the same transition-listener surface as the
// core, but holds the Connected transition back until a CatchUpMonitor
// reports caught_up.
//
// The only callback edge that could cycle (monitor to gate to core
// listeners) is a one-shot registration disarmed on first fire or on
// Dispose, so there is no cyclic ownership to break.
type CatchUpGate struct {
	core        *ConnectionStateCore
	newMonitor  func(DeltaStream) *CatchUpMonitor
	deltaStream DeltaStream

	state     ConnectionState
	monitor   *CatchUpMonitor
	listeners []TransitionListener
}

// NewCatchUpGate wraps core so that Connected is further delayed
// until deltaStream reports the client has caught up. Externally
// observed state is the gate's cached state, which lags the inner
// core's Connected state by at most one catch-up interval.
func NewCatchUpGate(core *ConnectionStateCore, deltaStream DeltaStream) *CatchUpGate {
	g := &CatchUpGate{
		core:        core,
		newMonitor:  NewCatchUpMonitor,
		deltaStream: deltaStream,
		state:       core.ConnectionState(),
	}
	core.OnTransition(g.intercept)
	return g
}

// OnTransition registers a listener for the gate's externally observed
// transitions, the same shape the core's OnTransition defines.
func (g *CatchUpGate) OnTransition(listener TransitionListener) {
	g.listeners = append(g.listeners, listener)
}

// ConnectionState returns the gate's cached state, not the inner
// core's: while a catch-up is pending, the gate still reports
// CatchingUp even though the core has already promoted to Connected.
func (g *CatchUpGate) ConnectionState() ConnectionState { return g.state }

// Dispose forwards to the inner core and disposes any live monitor.
func (g *CatchUpGate) Dispose() {
	if g.monitor != nil {
		g.monitor.Dispose()
		g.monitor = nil
	}
	g.core.Dispose()
}

func (g *CatchUpGate) intercept(newState, oldState ConnectionState, reason *string) {
	switch newState {
	case CatchingUp:
		assertInvariant(g.monitor == nil, "CatchUpGate: monitor already exists on transition to CatchingUp")
		g.monitor = g.newMonitor(g.deltaStream)
		g.forward(CatchingUp, oldState, reason)

	case Connected:
		// Do not forward yet: wait for the monitor's caught_up signal.
		m := g.monitor
		m.On(func() {
			if g.monitor != m {
				// disposed/superseded between transition and signal.
				return
			}
			g.monitor = nil
			caughtUp := "caught up"
			g.forward(Connected, CatchingUp, &caughtUp)
		})

	case Disconnected:
		if g.monitor != nil {
			g.monitor.Dispose()
			g.monitor = nil
		}
		g.forward(Disconnected, oldState, reason)
	}
}

func (g *CatchUpGate) forward(newState, oldState ConnectionState, reason *string) {
	g.state = newState
	for _, l := range g.listeners {
		l(newState, oldState, reason)
	}
}
