package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net/rpc"
	"net/rpc/jsonrpc"

	"gopkg.in/yaml.v3"
)

// maxFrameSize bounds a single length-prefixed frame.
const maxFrameSize = 16 << 20

var errFrameTooLarge = errors.New("transport: frame exceeds size limit")

func newServerCodec(mode Mode, conn io.ReadWriteCloser) rpc.ServerCodec {
	switch mode {
	case ModeJSON:
		return jsonrpc.NewServerCodec(conn)
	case ModeText:
		return newFrameCodec(conn, yaml.Marshal, yaml.Unmarshal)
	case ModeLegacy:
		return newFrameCodec(conn, gobMarshal, gobUnmarshal)
	default:
		return newStreamCodec(conn)
	}
}

func newClientCodec(mode Mode, conn io.ReadWriteCloser) rpc.ClientCodec {
	switch mode {
	case ModeJSON:
		return jsonrpc.NewClientCodec(conn)
	case ModeText:
		return newFrameCodec(conn, yaml.Marshal, yaml.Unmarshal)
	case ModeLegacy:
		return newFrameCodec(conn, gobMarshal, gobUnmarshal)
	default:
		return newStreamCodec(conn)
	}
}

// streamCodec carries one gob stream per connection in each direction. It
// implements both rpc.ServerCodec and rpc.ClientCodec.
type streamCodec struct {
	rwc    io.ReadWriteCloser
	dec    *gob.Decoder
	enc    *gob.Encoder
	buf    *bufio.Writer
	closed bool
}

func newStreamCodec(conn io.ReadWriteCloser) *streamCodec {
	buf := bufio.NewWriter(conn)
	return &streamCodec{
		rwc: conn,
		dec: gob.NewDecoder(conn),
		enc: gob.NewEncoder(buf),
		buf: buf,
	}
}

func (c *streamCodec) ReadRequestHeader(r *rpc.Request) error   { return c.dec.Decode(r) }
func (c *streamCodec) ReadRequestBody(body any) error           { return c.dec.Decode(body) }
func (c *streamCodec) ReadResponseHeader(r *rpc.Response) error { return c.dec.Decode(r) }
func (c *streamCodec) ReadResponseBody(body any) error          { return c.dec.Decode(body) }

func (c *streamCodec) WriteResponse(r *rpc.Response, body any) error {
	return c.write(r, body)
}

func (c *streamCodec) WriteRequest(r *rpc.Request, body any) error {
	return c.write(r, body)
}

func (c *streamCodec) write(header, body any) error {
	if err := c.enc.Encode(header); err != nil {
		if c.buf.Flush() == nil {
			// gob could not encode the header; the stream is now unusable.
			c.Close()
		}
		return err
	}
	if err := c.enc.Encode(body); err != nil {
		if c.buf.Flush() == nil {
			c.Close()
		}
		return err
	}
	return c.buf.Flush()
}

func (c *streamCodec) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rwc.Close()
}

type marshalFunc func(any) ([]byte, error)
type unmarshalFunc func([]byte, any) error

// frameCodec writes every header and body as its own length-prefixed frame.
type frameCodec struct {
	rwc       io.ReadWriteCloser
	r         *bufio.Reader
	w         *bufio.Writer
	marshal   marshalFunc
	unmarshal unmarshalFunc
	closed    bool
}

func newFrameCodec(conn io.ReadWriteCloser, m marshalFunc, u unmarshalFunc) *frameCodec {
	return &frameCodec{
		rwc:       conn,
		r:         bufio.NewReader(conn),
		w:         bufio.NewWriter(conn),
		marshal:   m,
		unmarshal: u,
	}
}

func (c *frameCodec) ReadRequestHeader(r *rpc.Request) error   { return c.readInto(r) }
func (c *frameCodec) ReadRequestBody(body any) error           { return c.readInto(body) }
func (c *frameCodec) ReadResponseHeader(r *rpc.Response) error { return c.readInto(r) }
func (c *frameCodec) ReadResponseBody(body any) error          { return c.readInto(body) }

func (c *frameCodec) WriteResponse(r *rpc.Response, body any) error {
	return c.write(r, body)
}

func (c *frameCodec) WriteRequest(r *rpc.Request, body any) error {
	return c.write(r, body)
}

func (c *frameCodec) readInto(v any) error {
	frame, err := c.readFrame()
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return c.unmarshal(frame, v)
}

func (c *frameCodec) readFrame() ([]byte, error) {
	var size uint32
	if err := binary.Read(c.r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size > maxFrameSize {
		return nil, errFrameTooLarge
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(c.r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func (c *frameCodec) write(header, body any) error {
	for _, v := range []any{header, body} {
		frame, err := c.marshal(v)
		if err != nil {
			c.Close()
			return err
		}
		if len(frame) > maxFrameSize {
			c.Close()
			return errFrameTooLarge
		}
		if err := binary.Write(c.w, binary.BigEndian, uint32(len(frame))); err != nil {
			return err
		}
		if _, err := c.w.Write(frame); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

func (c *frameCodec) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rwc.Close()
}

func gobMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobUnmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// encodeWith runs the mode's marshaller on v, converting panics raised by
// reflection-based encoders into errors.
func encodeWith(mode Mode, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoder panic: %v", r)
		}
	}()
	switch mode {
	case ModeText:
		_, err = yaml.Marshal(v)
	case ModeJSON:
		_, err = jsonMarshal(v)
	default:
		_, err = gobMarshal(v)
	}
	return err
}
