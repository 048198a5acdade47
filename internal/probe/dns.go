// Package probe verifies end to end that an instance is actually
// sinkholing DNS. The REST API reports what the appliance believes; the
// probe asks the resolver itself by querying a canary domain that every
// instance is expected to block.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"

	"pifleet.dev/pifleet/internal/config"
	"pifleet.dev/pifleet/internal/pihole"
)

// Result is the outcome of probing one instance.
type Result struct {
	Name    string  `json:"name"`
	Server  string  `json:"server"`
	Domain  string  `json:"domain"`
	Blocked *bool   `json:"blocked"`
	Answer  string  `json:"answer,omitempty"`
	RTT     string  `json:"rtt,omitempty"`
	Error   *string `json:"error"`
}

// Prober issues DNS canary queries against instances.
type Prober struct {
	domain  string
	port    int
	timeout time.Duration
}

// New creates a Prober for the given canary domain and resolver port.
func New(domain string, port int) *Prober {
	if domain == "" {
		domain = config.DefaultProbeDomain
	}
	if port <= 0 {
		port = 53
	}
	return &Prober{
		domain:  domain,
		port:    port,
		timeout: 5 * time.Second,
	}
}

// Probe queries one instance's resolver for the canary domain and decides
// whether the answer looks sinkholed.
func (p *Prober) Probe(ctx context.Context, inst pihole.InstanceConfig) Result {
	server := net.JoinHostPort(config.HostOf(inst.URL), strconv.Itoa(p.port))
	res := Result{Name: inst.Name, Server: server, Domain: p.domain}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(p.domain), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: p.timeout}
	reply, rtt, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		e := fmt.Sprintf("dns query failed: %v", err)
		res.Error = &e
		return res
	}
	res.RTT = rtt.Round(time.Millisecond).String()

	blocked := sinkholed(reply)
	res.Blocked = &blocked
	if len(reply.Answer) > 0 {
		res.Answer = shortAnswer(reply.Answer[0])
	}
	return res
}

// ProbeAll probes every instance sequentially in input order. Probes are
// cheap single-datagram exchanges; sequential keeps the canary traffic
// from looking like a burst scan.
func (p *Prober) ProbeAll(ctx context.Context, instances []pihole.InstanceConfig) []Result {
	results := make([]Result, len(instances))
	for i, inst := range instances {
		results[i] = p.Probe(ctx, inst)
	}
	return results
}

// sinkholed reports whether a reply looks like Pi-hole blocking: NXDOMAIN,
// an empty answer section, or an answer pointing at the null address.
func sinkholed(reply *dns.Msg) bool {
	if reply.Rcode == dns.RcodeNameError {
		return true
	}
	if len(reply.Answer) == 0 {
		return true
	}
	for _, rr := range reply.Answer {
		switch a := rr.(type) {
		case *dns.A:
			if a.A.IsUnspecified() {
				return true
			}
		case *dns.AAAA:
			if a.AAAA.IsUnspecified() {
				return true
			}
		}
	}
	return false
}

func shortAnswer(rr dns.RR) string {
	switch a := rr.(type) {
	case *dns.A:
		return a.A.String()
	case *dns.AAAA:
		return a.AAAA.String()
	case *dns.CNAME:
		return a.Target
	default:
		return dns.TypeToString[rr.Header().Rrtype]
	}
}
