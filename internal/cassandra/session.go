// Package cassandra builds the gocql session the rest of the engine talks
// to the wide-column store through. It is a direct descendant of the
// teacher's middleware.CassandraSession, generalized to accept a
// consistency level and timeout, and to resolve seed hosts through a
// dnscache.Resolver instead of gocql's built-in (uncached) resolution.
package cassandra

import (
	"context"
	"net"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/dnscache"

	"github.com/jeffpierce/aggrollup/internal/config"
)

// Resolver wraps a dnscache.Resolver with a background refresh loop,
// mirroring eugener-gandalf's shared DNS cache for provider HTTP clients
// (cmd/gandalf/run.go), just pointed at Cassandra seed hosts instead of
// upstream provider hosts.
type Resolver struct {
	inner *dnscache.Resolver
	stop  chan struct{}
}

// NewResolver creates a Resolver and starts its periodic refresh loop.
func NewResolver(refresh time.Duration) *Resolver {
	r := &Resolver{inner: &dnscache.Resolver{}, stop: make(chan struct{})}
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}
	go func() {
		t := time.NewTicker(refresh)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				r.inner.Refresh(true)
			case <-r.stop:
				return
			}
		}
	}()
	return r
}

// Close stops the refresh loop.
func (r *Resolver) Close() { close(r.stop) }

// dialContext is a net.Dialer-compatible DialContext that resolves through
// the cached resolver before dialing.
func (r *Resolver) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, ""
	}
	ips, err := r.inner.LookupHost(ctx, host)
	if err != nil || len(ips) == 0 {
		return (&net.Dialer{}).DialContext(ctx, network, addr)
	}
	resolved := ips[0]
	if port != "" {
		resolved = net.JoinHostPort(resolved, port)
	}
	return (&net.Dialer{}).DialContext(ctx, network, resolved)
}

// NewSession builds a round-robin connection pool to the Cassandra
// cluster, applying the engine's configured consistency and timeout.
func NewSession(cfg config.CassandraConfig, resolver *Resolver) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Port = cfg.Port
	cluster.DiscoverHosts = cfg.DiscoverHosts
	cluster.Keyspace = cfg.Keyspace
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Consistency != "" {
		cluster.Consistency = gocql.ParseConsistency(cfg.Consistency)
	}
	if resolver != nil {
		cluster.Dialer = dialerFunc(resolver.dialContext)
	}

	return cluster.CreateSession()
}

// dialerFunc adapts a plain dial function to gocql.Dialer.
type dialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (f dialerFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}
