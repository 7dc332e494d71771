package rcon

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"rconbridge/internal/model"
)

// Request ids used within a single exchange. The sentinel id marks the
// end-of-response probe for fragmented replies.
const (
	loginRequestID    int32 = 1
	commandRequestID  int32 = 2
	sentinelRequestID int32 = 3
)

// probeCommand is a harmless command used to verify connectivity. Servers may
// legitimately answer it with an empty payload.
const probeCommand = "list"

type Config struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		DialTimeout: 5 * time.Second,
		ReadTimeout: 5 * time.Second,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
	}
}

// Client executes authenticated commands against one RCON endpoint. Every
// call opens a fresh connection and closes it on all exit paths; no state is
// retained between calls, so a Client is safe for concurrent use.
type Client struct {
	creds model.Credentials
	cfg   Config
}

func NewClient(creds model.Credentials, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Client{creds: creds, cfg: cfg}
}

// TestConnection performs a login plus a harmless probe command. An empty
// response body still counts as success: the server is reachable and the
// password was accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ExecuteCommand(ctx, probeCommand)
	return err
}

// ExecuteCommand logs in, sends one command, and returns the trimmed,
// reassembled response. Transient failures are retried up to MaxRetries
// attempts with a fixed delay; authentication failures and framing violations
// are surfaced immediately.
func (c *Client) ExecuteCommand(ctx context.Context, command string) (string, error) {
	var last *Error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		out, err := c.exchange(ctx, command)
		if err == nil {
			return out, nil
		}

		rerr := classify(err)
		if !rerr.Transient() {
			return "", rerr
		}
		last = rerr

		if ctx.Err() != nil {
			return "", rerr
		}
		if attempt < c.cfg.MaxRetries-1 {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return "", rerr
			}
		}
	}
	return "", last
}

// exchange is one full connect + login + command round trip.
func (c *Client) exchange(ctx context.Context, command string) (string, error) {
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	addr := net.JoinHostPort(c.creds.Host, strconv.Itoa(int(c.creds.Port)))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// Abandoning the call must promptly close the transport, not leak it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := c.login(conn); err != nil {
		return "", err
	}

	if err := writePacket(conn, Packet{RequestID: commandRequestID, Type: TypeCommand, Payload: []byte(command)}); err != nil {
		return "", err
	}
	// Empty probe echoed by the server after the real response; its echo marks
	// the response complete even when it spans multiple packets.
	if err := writePacket(conn, Packet{RequestID: sentinelRequestID, Type: TypeResponse}); err != nil {
		return "", err
	}

	asm := NewAssembler(commandRequestID, sentinelRequestID)
	for {
		p, err := c.readPacket(conn)
		if err != nil {
			rerr := classify(err)
			// Some servers never echo the sentinel; a read timeout after at
			// least one fragment declares the response complete.
			if rerr.Kind == KindTimeout && asm.Received() {
				break
			}
			return "", rerr
		}
		if asm.Add(p) {
			break
		}
	}
	return strings.TrimSpace(asm.Payload()), nil
}

func (c *Client) login(conn net.Conn) error {
	if err := writePacket(conn, Packet{RequestID: loginRequestID, Type: TypeLogin, Payload: []byte(c.creds.Password)}); err != nil {
		return err
	}

	for {
		p, err := c.readPacket(conn)
		if err != nil {
			return err
		}
		if p.RequestID == -1 {
			return &Error{Kind: KindAuthFailed, Detail: "server rejected password"}
		}
		if p.RequestID == loginRequestID {
			return nil
		}
		// Some servers send an empty RESPONSE before the login echo; skip it.
	}
}

func writePacket(conn net.Conn, p Packet) error {
	raw, err := Encode(p)
	if err != nil {
		return err
	}
	_, err = conn.Write(raw)
	return err
}

func (c *Client) readPacket(conn net.Conn) (Packet, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		return Packet{}, err
	}

	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return Packet{}, err
	}
	length := int32(binary.LittleEndian.Uint32(lenBuf))
	if length < headerSize+terminatorSize || length > headerSize+MaxPayloadSize+terminatorSize {
		return Packet{}, malformed("length field out of range")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return Packet{}, err
	}
	return Decode(append(lenBuf, body...))
}
