package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// DefaultNameserver is the local stub resolver.
const DefaultNameserver = "127.0.0.53:53"

var ErrNoEndpoints = errors.New("no worker endpoints found")

// Endpoint is one worker address advertised through an SRV record.
type Endpoint struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// URL returns the base URL of the endpoint for the given scheme.
func (e Endpoint) URL(scheme string) string {
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port))))
}

// Resolver discovers worker endpoints using DNS SRV records.
type Resolver struct {
	nameserver string
	client     *dns.Client
}

// NewResolver creates a resolver querying nameserver ("host:port"). An empty
// nameserver uses DefaultNameserver.
func NewResolver(nameserver string) *Resolver {
	if nameserver == "" {
		nameserver = DefaultNameserver
	}
	return &Resolver{
		nameserver: nameserver,
		client:     new(dns.Client),
	}
}

// ResolveEndpoints resolves a service name such as
// "_pruntime._tcp.cluster.example.org" to its SRV targets, ordered by
// ascending priority and then descending weight.
func (r *Resolver) ResolveEndpoints(ctx context.Context, service string) ([]Endpoint, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(service), dns.TypeSRV)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.nameserver)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", service, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("SRV lookup for %s failed: %s", service, dns.RcodeToString[in.Rcode])
	}

	endpoints := make([]Endpoint, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			endpoints = append(endpoints, Endpoint{
				Host:     strings.TrimSuffix(srv.Target, "."),
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoEndpoints, service)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].Priority != endpoints[j].Priority {
			return endpoints[i].Priority < endpoints[j].Priority
		}
		return endpoints[i].Weight > endpoints[j].Weight
	})
	return endpoints, nil
}

// ResolveEndpoints resolves service using DefaultNameserver.
func ResolveEndpoints(ctx context.Context, service string) ([]Endpoint, error) {
	return NewResolver("").ResolveEndpoints(ctx, service)
}
