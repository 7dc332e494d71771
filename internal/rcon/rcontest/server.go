// Package rcontest runs a scriptable in-process RCON server for tests, in
// the spirit of httptest. It frames packets on its own so it stays
// independent of the client implementation under test.
package rcontest

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
)

type Options struct {
	// Responses maps a command to its reply payload. Commands not present
	// reply with an empty payload.
	Responses map[string]string
	// Fragment splits command replies into two response packets.
	Fragment bool
	// NoSentinel suppresses the end-of-response echo, forcing clients onto
	// their read-timeout path.
	NoSentinel bool
	// SilentAfterLogin accepts the login but never answers commands.
	SilentAfterLogin bool
	// CloseOnAccept drops every connection immediately, simulating a
	// persistently failing transport.
	CloseOnAccept bool
}

type Server struct {
	Host     string
	Port     uint16
	Password string

	opts Options
	ln   net.Listener

	mu      sync.Mutex
	accepts int
	closed  bool
}

func Start(password string, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	addr := ln.Addr().(*net.TCPAddr)
	s := &Server{
		Host:     "127.0.0.1",
		Port:     uint16(addr.Port),
		Password: password,
		opts:     opts,
		ln:       ln,
	}
	go s.acceptLoop()
	return s, nil
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Accepts reports how many connections the server has accepted, which lets
// tests count client attempts.
func (s *Server) Accepts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.ln.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accepts++
		s.mu.Unlock()

		if s.opts.CloseOnAccept {
			_ = conn.Close()
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	authenticated := false
	for {
		reqID, typ, payload, err := readFrame(conn)
		if err != nil {
			return
		}

		switch {
		case typ == 3: // login
			if string(payload) != s.Password {
				writeFrame(conn, -1, 2, nil)
				return
			}
			authenticated = true
			writeFrame(conn, reqID, 2, nil)
		case typ == 2 && authenticated: // command
			if s.opts.SilentAfterLogin {
				continue
			}
			reply := s.opts.Responses[string(payload)]
			if s.opts.Fragment && len(reply) > 1 {
				half := len(reply) / 2
				writeFrame(conn, reqID, 0, []byte(reply[:half]))
				writeFrame(conn, reqID, 0, []byte(reply[half:]))
			} else {
				writeFrame(conn, reqID, 0, []byte(reply))
			}
		default:
			// Sentinel probe: echo it back so the client can finalize.
			if !s.opts.NoSentinel {
				writeFrame(conn, reqID, 0, nil)
			}
		}
	}
}

func readFrame(conn net.Conn) (reqID, typ int32, payload []byte, err error) {
	lenBuf := make([]byte, 4)
	if _, err = io.ReadFull(conn, lenBuf); err != nil {
		return
	}
	length := binary.LittleEndian.Uint32(lenBuf)
	body := make([]byte, length)
	if _, err = io.ReadFull(conn, body); err != nil {
		return
	}
	reqID = int32(binary.LittleEndian.Uint32(body[0:4]))
	typ = int32(binary.LittleEndian.Uint32(body[4:8]))
	payload = body[8 : len(body)-2]
	return
}

func writeFrame(conn net.Conn, reqID, typ int32, payload []byte) {
	length := uint32(8 + len(payload) + 2)
	buf := make([]byte, 0, 4+length)
	buf = binary.LittleEndian.AppendUint32(buf, length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(reqID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(typ))
	buf = append(buf, payload...)
	buf = append(buf, 0x00, 0x00)
	_, _ = conn.Write(buf)
}
