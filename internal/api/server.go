package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

// Handler is the client-facing surface a connection's PUT/GET frames are
// dispatched to — satisfied by *dht.Node.
type Handler interface {
	PutKey(ctx context.Context, key string, value []byte) error
	GetKey(ctx context.Context, key string) (value []byte, found bool, err error)
}

// Server accepts client connections on a TCP listener and serves the
// length-prefixed frame protocol on each, one connection per goroutine —
// grounded on asyncio's one-Protocol-instance-per-connection model in
// original_source/src/api/controller.py, translated to Go's
// goroutine-per-connection idiom.
type Server struct {
	addr    string
	handler Handler
	logger  *log.Logger

	listener net.Listener
}

// NewServer builds a Server bound to addr.
func NewServer(addr string, handler Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

// Start listens on addr and serves connections until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Printf("api: listening on %s", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Printf("api: accept: %v", err)
			continue
		}
		go s.serveConn(conn)
	}
}

// Stop closes the listener, unblocking Start.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		msgType, body, err := ReadFrame(conn)
		if err != nil {
			return
		}

		switch msgType {
		case TypePut:
			s.handlePut(conn, body)
		case TypeGet:
			s.handleGet(conn, body)
		default:
			// Unknown type: close the connection, per §7(a).
			s.logger.Printf("api: unknown frame type %d, closing connection", msgType)
			return
		}
	}
}

func (s *Server) handlePut(conn net.Conn, body []byte) {
	frame, err := DecodePut(body)
	if err != nil {
		s.logger.Printf("api: malformed PUT: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.handler.PutKey(ctx, frame.Key, frame.Value); err != nil {
		s.logger.Printf("api: put %q failed: %v", frame.Key, err)
		conn.Write(EncodeFail(frame.Key))
		return
	}
	conn.Write(EncodeSucc(frame.Key, frame.Value))
}

func (s *Server) handleGet(conn net.Conn, body []byte) {
	frame, err := DecodeGet(body)
	if err != nil {
		s.logger.Printf("api: malformed GET: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	value, found, err := s.handler.GetKey(ctx, frame.Key)
	if err != nil || !found {
		conn.Write(EncodeFail(frame.Key))
		return
	}
	conn.Write(EncodeSucc(frame.Key, value))
}
