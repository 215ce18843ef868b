//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrRefused is returned by Dial when no listener is bound to the
// address.
var ErrRefused = errors.New("p2p: connection refused")

// Network creates connections between parties.
type Network interface {
	// Listen binds a listener to the address.
	Listen(addr string) (Listener, error)
	// Dial connects to the address.
	Dial(ctx context.Context, addr string) (*Conn, error)
}

// Listener accepts connections.
type Listener interface {
	Accept(ctx context.Context) (*Conn, error)
	Close() error
}

// MemNetwork implements an in-process network. The connections are
// pipes.
type MemNetwork struct {
	m         sync.Mutex
	listeners map[string]*memListener
}

// NewMemNetwork creates a new in-process network.
func NewMemNetwork() *MemNetwork {
	return &MemNetwork{
		listeners: make(map[string]*memListener),
	}
}

// Listen implements Network.Listen.
func (nw *MemNetwork) Listen(addr string) (Listener, error) {
	nw.m.Lock()
	defer nw.m.Unlock()

	if _, ok := nw.listeners[addr]; ok {
		return nil, errors.Newf("p2p: address %s already in use", addr)
	}
	l := &memListener{
		nw:     nw,
		addr:   addr,
		conns:  make(chan *Conn),
		closed: make(chan struct{}),
	}
	nw.listeners[addr] = l
	return l, nil
}

// Dial implements Network.Dial.
func (nw *MemNetwork) Dial(ctx context.Context, addr string) (*Conn, error) {
	nw.m.Lock()
	l, ok := nw.listeners[addr]
	nw.m.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrRefused, "dial %s", addr)
	}
	c0, c1 := Pipe()
	select {
	case l.conns <- c1:
		return c0, nil
	case <-l.closed:
		c0.Close()
		c1.Close()
		return nil, errors.Wrapf(ErrRefused, "dial %s", addr)
	case <-ctx.Done():
		c0.Close()
		c1.Close()
		return nil, ctx.Err()
	}
}

type memListener struct {
	nw     *MemNetwork
	addr   string
	conns  chan *Conn
	once   sync.Once
	closed chan struct{}
}

func (l *memListener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *memListener) Close() error {
	l.once.Do(func() {
		l.nw.m.Lock()
		delete(l.nw.listeners, l.addr)
		l.nw.m.Unlock()
		close(l.closed)
	})
	return nil
}

// TCPNetwork implements a TCP/IP network.
type TCPNetwork struct {
}

// Listen implements Network.Listen.
func (nw *TCPNetwork) Listen(addr string) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{
		listener: l,
	}, nil
}

// Dial implements Network.Dial.
func (nw *TCPNetwork) Dial(ctx context.Context, addr string) (*Conn, error) {
	var dialer net.Dialer
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(nc), nil
}

type tcpListener struct {
	listener net.Listener
}

// Addr returns the listener's network address.
func (l *tcpListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *tcpListener) Accept(ctx context.Context) (*Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		l.listener.Close()
	})
	defer stop()

	nc, err := l.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return NewConn(nc), nil
}

func (l *tcpListener) Close() error {
	err := l.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
