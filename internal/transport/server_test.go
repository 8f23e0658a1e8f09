package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

// fakeHandler is an in-memory Handler for exercising the wire protocol
// without a real node or storage shard.
type fakeHandler struct {
	successor   string
	predecessor string
	hasPred     bool
	store       map[string]string

	// hopLimited makes FindSuccessor behave as though the recursion
	// budget ran out: it still answers with successor as the best
	// candidate, but via a HopLimitExceeded error.
	hopLimited bool
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{successor: "self:0", store: make(map[string]string)}
}

func (f *fakeHandler) Successor(ctx context.Context) (string, error) { return f.successor, nil }

func (f *fakeHandler) Predecessor(ctx context.Context) (string, bool, error) {
	return f.predecessor, f.hasPred, nil
}

// fakeHopLimitError is a minimal HopLimitExceeded implementation, kept
// local to this test file so it does not need the real node package
// (which imports transport, and would cycle back here).
type fakeHopLimitError struct{ addr string }

func (e *fakeHopLimitError) Error() string          { return "hop limit exceeded, candidate " + e.addr }
func (e *fakeHopLimitError) HopLimitExceeded() bool { return true }

func (f *fakeHandler) FindSuccessor(ctx context.Context, id ring.ID, hopsLeft uint) (string, error) {
	if f.hopLimited {
		return f.successor, &fakeHopLimitError{addr: f.successor}
	}
	return f.successor, nil
}

func (f *fakeHandler) ClosestPrecedingFinger(ctx context.Context, id ring.ID) (string, error) {
	return f.successor, nil
}

func (f *fakeHandler) Notify(ctx context.Context, addr string) error {
	f.predecessor = addr
	f.hasPred = true
	return nil
}

func (f *fakeHandler) Ping(ctx context.Context) error { return nil }

func (f *fakeHandler) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.store[key]
	return v, ok, nil
}

func (f *fakeHandler) Set(ctx context.Context, key, value string) error {
	f.store[key] = value
	return nil
}

func (f *fakeHandler) ID(ctx context.Context, offset uint64) (ring.ID, error) {
	return ring.ID(offset), nil
}

func startTestServer(t *testing.T, h Handler) (addr string, stop func()) {
	t.Helper()
	srv, err := NewServer("127.0.0.1:0", h)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return ListenAddrString(srv.Addr()), cancel
}

func TestClientServerGetSetRoundTrip(t *testing.T) {
	h := newFakeHandler()
	addr, _ := startTestServer(t, h)
	peer := NewRemotePeer(addr, WithPeerTimeout(2*time.Second))

	if err := peer.Set(context.Background(), "foo", "bar"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, found, err := peer.Get(context.Background(), "foo")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || value != "bar" {
		t.Errorf("Get = (%q, %v), want (bar, true)", value, found)
	}

	_, found, err = peer.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if found {
		t.Error("expected miss for unknown key")
	}
}

func TestClientServerNotifyUpdatesPredecessor(t *testing.T) {
	h := newFakeHandler()
	addr, _ := startTestServer(t, h)
	peer := NewRemotePeer(addr)

	if err := peer.Notify(context.Background(), "127.0.0.1:9999"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	predAddr, has, err := peer.Predecessor(context.Background())
	if err != nil {
		t.Fatalf("Predecessor: %v", err)
	}
	if !has || predAddr != "127.0.0.1:9999" {
		t.Errorf("Predecessor = (%q, %v), want (127.0.0.1:9999, true)", predAddr, has)
	}
}

func TestClientServerFindSuccessorHopLimitReturnsCandidate(t *testing.T) {
	h := newFakeHandler()
	h.successor = "127.0.0.1:6000"
	h.hopLimited = true
	addr, _ := startTestServer(t, h)
	peer := NewRemotePeer(addr)

	got, err := peer.FindSuccessor(context.Background(), ring.ID(42), 0)
	var hopErr *HopLimitError
	if !errors.As(err, &hopErr) {
		t.Fatalf("FindSuccessor error = %v, want *HopLimitError", err)
	}
	if got != h.successor || hopErr.Addr != h.successor {
		t.Errorf("FindSuccessor = (%q, %v), want best candidate %q", got, hopErr, h.successor)
	}
}

func TestClientServerUnknownCommandFails(t *testing.T) {
	h := newFakeHandler()
	addr, _ := startTestServer(t, h)
	peer := NewRemotePeer(addr)

	resp, err := peer.roundTrip(context.Background(), "bogus", struct{}{})
	if err != nil {
		t.Fatalf("roundTrip: %v", err)
	}
	if resp.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", resp.Status)
	}
}
