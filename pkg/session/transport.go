package session

import (
	"context"
	"io"
	"net"
	"time"
)

// Transport is the byte stream a Session speaks over. net.Conn satisfies
// it; tests substitute in-memory implementations.
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Dialer opens a Transport to the given address.
type Dialer func(ctx context.Context, address string) (Transport, error)

// DialTCP is the default Dialer. It opens a TCP connection with Nagle
// disabled — command round trips are small and latency-bound.
func DialTCP(ctx context.Context, address string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}
