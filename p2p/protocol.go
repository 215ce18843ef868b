//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

const (
	bufSize     = 4096
	maxDataSize = 1 << 24
)

// Conn is a framed rendezvous connection. The barrier messages are
// big-endian integers and length-prefixed strings. Outgoing values
// are buffered until the connection is flushed.
type Conn struct {
	conn   io.ReadWriter
	r      *bufio.Reader
	w      *bufio.Writer
	rtmp   [4]byte
	wtmp   [4]byte
	Stats  IOStats
	closed atomic.Bool
}

// IOStats counts the bytes moved over a connection.
type IOStats struct {
	Sent    *atomic.Uint64
	Recvd   *atomic.Uint64
	Flushed *atomic.Uint64
}

// NewIOStats creates zeroed I/O counters.
func NewIOStats() IOStats {
	return IOStats{
		Sent:    new(atomic.Uint64),
		Recvd:   new(atomic.Uint64),
		Flushed: new(atomic.Uint64),
	}
}

// Sum returns the number of bytes sent and received.
func (stats IOStats) Sum() uint64 {
	return stats.Sent.Load() + stats.Recvd.Load()
}

type countingReader struct {
	r io.Reader
	n *atomic.Uint64
}

func (cr countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n.Add(uint64(n))
	return n, err
}

type countingWriter struct {
	w io.Writer
	n *atomic.Uint64
}

func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n.Add(uint64(n))
	return n, err
}

// NewConn wraps the stream conn into a framed connection.
func NewConn(conn io.ReadWriter) *Conn {
	stats := NewIOStats()
	return &Conn{
		conn:  conn,
		r:     bufio.NewReaderSize(countingReader{conn, stats.Recvd}, bufSize),
		w:     bufio.NewWriterSize(countingWriter{conn, stats.Sent}, bufSize),
		Stats: stats,
	}
}

// Flush writes the buffered values to the peer.
func (c *Conn) Flush() error {
	if c.w.Buffered() == 0 {
		return nil
	}
	if err := c.w.Flush(); err != nil {
		return err
	}
	c.Stats.Flushed.Add(1)
	return nil
}

// Close closes the underlying stream without flushing. It is safe to
// call Close more than once and while another goroutine is blocked
// in a receive.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SendByte queues a single byte.
func (c *Conn) SendByte(val byte) error {
	return c.w.WriteByte(val)
}

// SendUint32 queues val as a big-endian uint32.
func (c *Conn) SendUint32(val int) error {
	binary.BigEndian.PutUint32(c.wtmp[:], uint32(val))
	_, err := c.w.Write(c.wtmp[:])
	return err
}

// SendData queues val prefixed with its length.
func (c *Conn) SendData(val []byte) error {
	if len(val) > maxDataSize {
		return errors.Newf("p2p: data too large: %d", len(val))
	}
	if err := c.SendUint32(len(val)); err != nil {
		return err
	}
	_, err := c.w.Write(val)
	return err
}

// SendString queues val prefixed with its length.
func (c *Conn) SendString(val string) error {
	return c.SendData([]byte(val))
}

// ReceiveByte reads a single byte.
func (c *Conn) ReceiveByte() (byte, error) {
	return c.r.ReadByte()
}

// ReceiveUint32 reads a big-endian uint32. A stream ending inside the
// value gives io.ErrUnexpectedEOF.
func (c *Conn) ReceiveUint32() (int, error) {
	if _, err := io.ReadFull(c.r, c.rtmp[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(c.rtmp[:])), nil
}

// ReceiveData reads a length-prefixed byte slice.
func (c *Conn) ReceiveData() ([]byte, error) {
	l, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if l > maxDataSize {
		return nil, errors.Newf("p2p: data too large: %d", l)
	}
	result := make([]byte, l)
	if _, err := io.ReadFull(c.r, result); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return result, nil
}

// ReceiveString reads a length-prefixed string.
func (c *Conn) ReceiveString() (string, error) {
	data, err := c.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
