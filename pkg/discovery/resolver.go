// Package discovery resolves a camera's current address over mDNS (DNS-SD)
// when CameraConfig.Discovery selects it instead of a static address
// (spec.md §3's "address(es)/UID", expanded by SPEC_FULL.md §4.16).
package discovery

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type cameras in this fleet advertise
// under.
const ServiceType = "_bcam._tcp"

// DefaultDomain is the standard mDNS domain.
const DefaultDomain = "local."

const (
	DefaultBrowseTimeout = 10 * time.Second
	DefaultLookupTimeout = 5 * time.Second
)

// Candidate is a resolved dial target: enough to open a transport.Conn
// without needing the rest of the DNS-SD record.
type Candidate struct {
	Host string
	Port int
	UID  string
}

// MDNSResolver is the interface for mDNS resolution, letting tests inject
// a fake instead of touching the network.
type MDNSResolver interface {
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// ResolverConfig configures a Resolver. The zero value dials a real
// zeroconf resolver with the package's default timeouts.
type ResolverConfig struct {
	MDNSResolver  MDNSResolver
	LookupTimeout time.Duration
}

// Resolver looks up a camera's current address by UID.
type Resolver struct {
	resolver MDNSResolver
	timeout  time.Duration
}

// NewResolver builds a Resolver per cfg.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	resolver := cfg.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	timeout := cfg.LookupTimeout
	if timeout == 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{resolver: resolver, timeout: timeout}, nil
}

// Lookup resolves uid to a dial Candidate, or ErrServiceNotFound /
// ErrTimeout if nothing answers before the deadline.
func (r *Resolver) Lookup(ctx context.Context, uid string) (*Candidate, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		r.resolver.Lookup(ctx, uid, ServiceType, DefaultDomain, entries)
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		return entryToCandidate(uid, entry)
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func entryToCandidate(uid string, entry *zeroconf.ServiceEntry) (*Candidate, error) {
	var host net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0]
	default:
		return nil, ErrNoAddresses
	}
	return &Candidate{Host: host.String(), Port: entry.Port, UID: uid}, nil
}
