package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"

	"github.com/google/uuid"

	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
	"github.com/kunwarpradip/distributedchord-dht/internal/metrics"
	"github.com/kunwarpradip/distributedchord-dht/internal/netsim"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
)

// Handler is implemented by the local node and satisfies every inbound
// RPC the wire protocol can carry. The server decodes a request line,
// dispatches to the matching method, and encodes whatever it returns.
type Handler interface {
	Successor(ctx context.Context) (string, error)
	Predecessor(ctx context.Context) (addr string, has bool, err error)
	FindSuccessor(ctx context.Context, id ring.ID, hopsLeft uint) (string, error)
	ClosestPrecedingFinger(ctx context.Context, id ring.ID) (string, error)
	Notify(ctx context.Context, addr string) error
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	ID(ctx context.Context, offset uint64) (ring.ID, error)
}

// Server accepts framed connections and dispatches each request line to
// a Handler, one goroutine per connection, one request-response pair per
// connection.
type Server struct {
	listener net.Listener
	handler  Handler
	lgr      logger.Logger
	metrics  *metrics.Registry
	netsim   *netsim.Profile
}

// ServerOption configures optional Server collaborators.
type ServerOption func(*Server)

func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.lgr = l }
}

func WithServerMetrics(m *metrics.Registry) ServerOption {
	return func(s *Server) { s.metrics = m }
}

func WithServerNetsim(p *netsim.Profile) ServerOption {
	return func(s *Server) { s.netsim = p }
}

// NewServer binds addr and returns a Server ready to Serve.
func NewServer(addr string, handler Handler, opts ...ServerOption) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, newTransportError("listen", err)
	}
	s := &Server{
		listener: ln,
		handler:  handler,
		lgr:      logger.NopLogger{},
		netsim:   netsim.NewProfile(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr reports the bound listen address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close stops accepting new connections.
func (s *Server) Close() error { return s.listener.Close() }

// Serve accepts connections until the listener closes or ctx is done.
// Each connection is handled in its own goroutine and closed after one
// request-response round trip.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return newTransportError("accept", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	s.lgr.Debug("connection accepted", logger.F("conn_id", connID), logger.F("remote", conn.RemoteAddr().String()))

	if s.netsim != nil {
		if err := s.netsim.BeforeSend(conn); err != nil {
			return
		}
	}

	reader := bufio.NewReader(conn)
	line, err := readFrame(reader)
	if err != nil {
		return
	}

	req, err := decodeRequestLine(line)
	if err != nil {
		_ = s.respond(conn, Failed())
		return
	}

	resp := s.dispatch(ctx, req)
	s.lgr.Debug("request handled", logger.F("conn_id", connID), logger.F("command", req.Command), logger.F("status", resp.Status))
	_ = s.respond(conn, resp)
}

func (s *Server) respond(conn net.Conn, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFrame(conn, raw)
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Command {
	case CmdSuccessor:
		addr, err := s.handler.Successor(ctx)
		if err != nil {
			return s.fail(req.Command, err)
		}
		resp, err := OK(NodeDescriptor{Addr: addr})
		return s.okOrFail(req.Command, resp, err)

	case CmdPredecessor:
		addr, has, err := s.handler.Predecessor(ctx)
		if err != nil {
			return s.fail(req.Command, err)
		}
		if !has {
			addr = ""
		}
		resp, err := OK(PredecessorResponseData{Addr: addr})
		return s.okOrFail(req.Command, resp, err)

	case CmdFindSuccessor:
		var body FindSuccessorRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return Failed()
		}
		addr, err := s.handler.FindSuccessor(ctx, ring.ID(body.ID), uint(body.HopsLeft))
		if err != nil {
			var hopLimited HopLimitExceeded
			if !errors.As(err, &hopLimited) || !hopLimited.HopLimitExceeded() {
				return s.fail(req.Command, err)
			}
			// Hop budget ran out, but addr is still a usable best
			// candidate; report it as a degraded success rather than a
			// bare failure.
			resp, encErr := OK(NodeDescriptor{Addr: addr, Exhausted: true})
			return s.okOrFail(req.Command, resp, encErr)
		}
		resp, err := OK(NodeDescriptor{Addr: addr})
		return s.okOrFail(req.Command, resp, err)

	case CmdClosestPrecedingFinger:
		var body ClosestPrecedingFingerRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return Failed()
		}
		addr, err := s.handler.ClosestPrecedingFinger(ctx, ring.ID(body.ID))
		if err != nil {
			return s.fail(req.Command, err)
		}
		resp, err := OK(NodeDescriptor{Addr: addr})
		return s.okOrFail(req.Command, resp, err)

	case CmdNotify:
		var body NotifyRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return Failed()
		}
		if err := s.handler.Notify(ctx, body.Addr); err != nil {
			return s.fail(req.Command, err)
		}
		return Response{Status: StatusOK}

	case CmdPing:
		if err := s.handler.Ping(ctx); err != nil {
			return s.fail(req.Command, err)
		}
		return Response{Status: StatusOK}

	case CmdGet:
		var body GetRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return Failed()
		}
		value, found, err := s.handler.Get(ctx, body.Key)
		if err != nil || !found {
			return s.fail(req.Command, err)
		}
		resp, err := OK(GetResponseData{Data: value})
		return s.okOrFail(req.Command, resp, err)

	case CmdSet:
		var body SetRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return Failed()
		}
		if err := s.handler.Set(ctx, body.Key, body.Value); err != nil {
			return s.fail(req.Command, err)
		}
		return Response{Status: StatusOK}

	case CmdID:
		var body IDRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return Failed()
		}
		id, err := s.handler.ID(ctx, body.Offset)
		if err != nil {
			return s.fail(req.Command, err)
		}
		resp, err := OK(IDResponseData{ID: uint64(id)})
		return s.okOrFail(req.Command, resp, err)

	default:
		s.lgr.Warn("unknown command", logger.F("command", req.Command))
		return Failed()
	}
}

func (s *Server) fail(command string, err error) Response {
	if err != nil {
		s.lgr.Debug("rpc handler failed", logger.F("command", command), logger.F("error", err.Error()))
	}
	return Failed()
}

func (s *Server) okOrFail(command string, resp Response, err error) Response {
	if err != nil {
		return s.fail(command, err)
	}
	return resp
}

// ListenAddrString renders a bound TCP address as "host:port", useful
// for tests that bind to ":0" and need the chosen port.
func ListenAddrString(addr net.Addr) string {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	return net.JoinHostPort(tcpAddr.IP.String(), strconv.Itoa(tcpAddr.Port))
}
