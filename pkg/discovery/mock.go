package discovery

import (
	"context"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver answers Lookup from a table of registered entries,
// letting tests exercise Resolver without real network I/O.
type MockMDNSResolver struct {
	mu      sync.Mutex
	entries map[string]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver returns an empty mock.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{entries: make(map[string]*zeroconf.ServiceEntry)}
}

// Register makes instance resolve to entry on the next Lookup.
func (m *MockMDNSResolver) Register(instance string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[instance] = entry
}

// Lookup implements MDNSResolver.
func (m *MockMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.Lock()
	entry, ok := m.entries[instance]
	m.mu.Unlock()
	if !ok {
		// Nothing answers for an unregistered instance, as on a real
		// network: wait for the lookup's deadline.
		<-ctx.Done()
		return nil
	}
	select {
	case entries <- entry:
	case <-ctx.Done():
	}
	return nil
}
