package netutil

import "sync"

// Status is a point-in-time view of the local network.
type Status struct {
	IP         string
	Kind       Kind
	Connected  bool
	Interfaces []Interface
}

// Monitor watches for the advertised address changing, which happens when
// a laptop hops networks or tethering flips on. Callers poll Check from
// their own loop; the monitor does not own a goroutine.
type Monitor struct {
	mu       sync.Mutex
	ip       string
	kind     Kind
	onChange func(oldIP, newIP string, kind Kind)

	// probe is swappable for tests.
	probe func() (string, Kind)
}

// NewMonitor captures the current network as the baseline. onChange may be
// nil; Check still reports changes through its return value.
func NewMonitor(onChange func(oldIP, newIP string, kind Kind)) *Monitor {
	m := &Monitor{onChange: onChange, probe: probeBest}
	m.ip, m.kind = m.probe()
	return m
}

func probeBest() (string, Kind) {
	ifi, err := Best()
	if err != nil {
		return "", KindUnknown
	}
	return ifi.IP.String(), ifi.Kind
}

// Check re-probes the network and reports whether the advertised IP or
// interface kind moved since the last call. Fires onChange on movement.
func (m *Monitor) Check() bool {
	newIP, newKind := m.probe()

	m.mu.Lock()
	changed := newIP != m.ip || newKind != m.kind
	oldIP := m.ip
	if changed {
		m.ip, m.kind = newIP, newKind
	}
	cb := m.onChange
	m.mu.Unlock()

	if changed && cb != nil {
		cb(oldIP, newIP, newKind)
	}
	return changed
}

// Current returns the last observed address and kind.
func (m *Monitor) Current() (string, Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ip, m.kind
}

// Snapshot assembles a full status view for display.
func (m *Monitor) Snapshot() Status {
	ip, kind := m.Current()
	return Status{
		IP:         ip,
		Kind:       kind,
		Connected:  ip != "",
		Interfaces: Interfaces(),
	}
}
