package correlate

import "sync"

type entry struct {
	url      string
	openerID int
}

// Map remembers which tab a link was middle-clicked in, so that the tab the
// browser creates for it can be attributed to its opener.
type Map struct {
	mu      sync.Mutex
	entries []entry // oldest first; at most one entry per URL
}

// New creates an empty Map.
func New() *Map {
	return &Map{}
}

// Register records openerID as the source of url. A later registration of
// the same URL replaces the earlier one.
func (m *Map) Register(url string, openerID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].url == url {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.entries = append(m.entries, entry{url: url, openerID: openerID})
}

// Consume finds and removes the entry for a newly created tab. An exact
// (url, opener) pair wins; otherwise the oldest entry recorded for
// declaredOpenerID is taken, since the URL a tab reports at creation can
// differ from the clicked one after redirects or normalization.
func (m *Map) Consume(newTabURL string, declaredOpenerID int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.url == newTabURL && e.openerID == declaredOpenerID {
			m.removeAt(i)
			return e.openerID, true
		}
	}
	for i, e := range m.entries {
		if e.openerID == declaredOpenerID {
			m.removeAt(i)
			return e.openerID, true
		}
	}
	return 0, false
}

// Len returns the number of pending entries.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Map) removeAt(i int) {
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
}
