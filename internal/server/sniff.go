package server

import (
	"bufio"
	"net"
	"sync"
)

// isHTTP peeks at the start of a connection and reports whether it carries an
// HTTP request rather than a protobuf framed TCP session.
//
// HTTP methods start with two upper-case ASCII letters. A TCP frame starts with
// a varint length: zero for an empty name, a byte with the high bit set for
// long frames, and otherwise a single byte followed by the 0x0a field tag.
func isHTTP(br *bufio.Reader) (bool, error) {
	first, err := br.Peek(1)
	if err != nil {
		return false, err
	}
	if !isUpper(first[0]) {
		return false, nil
	}
	two, err := br.Peek(2)
	if err != nil {
		return false, err
	}
	return isUpper(two[1]), nil
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// connListener is a net.Listener fed with connections sniffed as HTTP.
type connListener struct {
	addr   net.Addr
	conns  chan net.Conn
	done   chan struct{}
	closed sync.Once
}

func newConnListener(addr net.Addr) *connListener {
	return &connListener{
		addr:  addr,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

// push hands conn to Accept. It returns false once the listener is closed.
func (l *connListener) push(conn net.Conn) bool {
	select {
	case l.conns <- conn:
		return true
	case <-l.done:
		return false
	}
}

func (l *connListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *connListener) Close() error {
	l.closed.Do(func() { close(l.done) })
	return nil
}

func (l *connListener) Addr() net.Addr {
	return l.addr
}
