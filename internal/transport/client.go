package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kunwarpradip/distributedchord-dht/internal/metrics"
	"github.com/kunwarpradip/distributedchord-dht/internal/netsim"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

// RemotePeer is an outbound RPC proxy to one node identified by address.
// Every call dials a fresh connection, writes one framed request, reads
// one framed response, and closes the connection — matching the
// protocol's one-request-per-connection shape.
type RemotePeer struct {
	addr    string
	dialer  net.Dialer
	timeout time.Duration
	netsim  *netsim.Profile
	metrics *metrics.Registry
	tracer  trace.Tracer
}

// PeerOption configures optional RemotePeer collaborators.
type PeerOption func(*RemotePeer)

func WithPeerTimeout(d time.Duration) PeerOption {
	return func(p *RemotePeer) { p.timeout = d }
}

func WithPeerNetsim(n *netsim.Profile) PeerOption {
	return func(p *RemotePeer) { p.netsim = n }
}

func WithPeerMetrics(m *metrics.Registry) PeerOption {
	return func(p *RemotePeer) { p.metrics = m }
}

func WithPeerTracer(t trace.Tracer) PeerOption {
	return func(p *RemotePeer) { p.tracer = t }
}

// NewRemotePeer builds a client proxy to the node listening at addr.
func NewRemotePeer(addr string, opts ...PeerOption) *RemotePeer {
	p := &RemotePeer{addr: addr, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Addr reports the peer's network address.
func (p *RemotePeer) Addr() string { return p.addr }

func (p *RemotePeer) startSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, nil
	}
	ctx, span := p.tracer.Start(ctx, "dht.rpc."+command,
		trace.WithAttributes(attribute.String("dht.peer.addr", p.addr)))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// roundTrip dials, applies network simulation, writes the request, and
// returns the decoded response. Dial, send, write and read failures are
// *TransportError; an undecodable response is a *ProtocolError.
func (p *RemotePeer) roundTrip(ctx context.Context, command string, payload any) (Response, error) {
	raw, err := encodeRequest(command, payload)
	if err != nil {
		return Response{}, err
	}

	deadline := time.Now().Add(p.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return Response{}, newTransportError("dial", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	if p.netsim != nil {
		if err := p.netsim.BeforeSend(conn); err != nil {
			return Response{}, newTransportError("send", err)
		}
	}

	if err := writeFrame(conn, raw); err != nil {
		return Response{}, newTransportError("write", err)
	}

	line, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return Response{}, &ProtocolError{Reason: "malformed response: " + err.Error()}
	}
	return resp, nil
}

func (p *RemotePeer) call(ctx context.Context, command string, payload any) (Response, error) {
	ctx, span := p.startSpan(ctx, command)
	resp, err := p.roundTrip(ctx, command, payload)
	endSpan(span, err)
	return resp, err
}

func errIfFailed(command string, resp Response) error {
	if resp.Status != StatusOK {
		return &ProtocolError{Reason: fmt.Sprintf("%s: remote returned failed status", command)}
	}
	return nil
}

// Successor asks the peer for its successor's address.
func (p *RemotePeer) Successor(ctx context.Context) (string, error) {
	resp, err := p.call(ctx, CmdSuccessor, struct{}{})
	if err != nil {
		return "", err
	}
	if err := errIfFailed(CmdSuccessor, resp); err != nil {
		return "", err
	}
	var body NodeDescriptor
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return "", &ProtocolError{Reason: err.Error()}
	}
	return body.Addr, nil
}

// Predecessor asks the peer for its predecessor's address, if it has
// one.
func (p *RemotePeer) Predecessor(ctx context.Context) (addr string, has bool, err error) {
	resp, err := p.call(ctx, CmdPredecessor, struct{}{})
	if err != nil {
		return "", false, err
	}
	if err := errIfFailed(CmdPredecessor, resp); err != nil {
		return "", false, err
	}
	var body PredecessorResponseData
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return "", false, &ProtocolError{Reason: err.Error()}
	}
	return body.Addr, body.Addr != "", nil
}

// FindSuccessor asks the peer to resolve id's owner, forwarding at most
// hopsLeft further hops on our behalf. hopsLeft is carried over the wire
// and decremented at every node in the chain, so the depth limit holds
// across the whole lookup rather than resetting at each hop. A response
// that ran out of hops still carries the best candidate found, returned
// alongside a *HopLimitError.
func (p *RemotePeer) FindSuccessor(ctx context.Context, id ring.ID, hopsLeft uint64) (string, error) {
	resp, err := p.call(ctx, CmdFindSuccessor, FindSuccessorRequest{ID: uint64(id), HopsLeft: hopsLeft})
	if err != nil {
		return "", err
	}
	if err := errIfFailed(CmdFindSuccessor, resp); err != nil {
		return "", err
	}
	var body NodeDescriptor
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return "", &ProtocolError{Reason: err.Error()}
	}
	if body.Exhausted {
		return body.Addr, &HopLimitError{Addr: body.Addr}
	}
	return body.Addr, nil
}

// ClosestPrecedingFinger asks the peer for the finger closest to but not
// equal to id, per its own routing table.
func (p *RemotePeer) ClosestPrecedingFinger(ctx context.Context, id ring.ID) (string, error) {
	resp, err := p.call(ctx, CmdClosestPrecedingFinger, ClosestPrecedingFingerRequest{ID: uint64(id)})
	if err != nil {
		return "", err
	}
	if err := errIfFailed(CmdClosestPrecedingFinger, resp); err != nil {
		return "", err
	}
	var body NodeDescriptor
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return "", &ProtocolError{Reason: err.Error()}
	}
	return body.Addr, nil
}

// Notify tells the peer that addr believes it might be its predecessor.
func (p *RemotePeer) Notify(ctx context.Context, addr string) error {
	resp, err := p.call(ctx, CmdNotify, NotifyRequest{Addr: addr})
	if err != nil {
		return err
	}
	return errIfFailed(CmdNotify, resp)
}

// Ping checks liveness.
func (p *RemotePeer) Ping(ctx context.Context) error {
	resp, err := p.call(ctx, CmdPing, struct{}{})
	if err != nil {
		return err
	}
	return errIfFailed(CmdPing, resp)
}

// Get fetches a key. found is false both when the peer reports a miss
// and when the call fails outright — callers that need to distinguish
// should inspect err.
func (p *RemotePeer) Get(ctx context.Context, key string) (value string, found bool, err error) {
	start := time.Now()
	resp, err := p.call(ctx, CmdGet, GetRequest{Key: key})
	if p.metrics != nil {
		p.metrics.RecordLatency(metrics.LatencyRPCGet, time.Since(start))
	}
	if err != nil || resp.Status != StatusOK {
		if p.metrics != nil {
			p.metrics.IncrementOne(metrics.RPCGetFailure)
		}
		if err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	if p.metrics != nil {
		p.metrics.IncrementOne(metrics.RPCGetSuccess)
	}
	var body GetResponseData
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return "", false, &ProtocolError{Reason: err.Error()}
	}
	return body.Data, true, nil
}

// Set stores a key/value pair on the peer.
func (p *RemotePeer) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	resp, err := p.call(ctx, CmdSet, SetRequest{Key: key, Value: value})
	if p.metrics != nil {
		p.metrics.RecordLatency(metrics.LatencyRPCSet, time.Since(start))
	}
	if err != nil || resp.Status != StatusOK {
		if p.metrics != nil {
			p.metrics.IncrementOne(metrics.RPCSetFailure)
		}
		if err != nil {
			return err
		}
		return errIfFailed(CmdSet, resp)
	}
	if p.metrics != nil {
		p.metrics.IncrementOne(metrics.RPCSetSuccess)
	}
	return nil
}

// ID asks the peer to compute (its own identifier + offset) mod M in
// its own identifier space.
func (p *RemotePeer) ID(ctx context.Context, offset uint64) (ring.ID, error) {
	resp, err := p.call(ctx, CmdID, IDRequest{Offset: offset})
	if err != nil {
		return 0, err
	}
	if err := errIfFailed(CmdID, resp); err != nil {
		return 0, err
	}
	var body IDResponseData
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return 0, &ProtocolError{Reason: err.Error()}
	}
	return ring.ID(body.ID), nil
}
