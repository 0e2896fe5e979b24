package wire

import "google.golang.org/protobuf/encoding/protowire"

// cursor walks a length-delimited protobuf-wire payload field by field,
// sticky-failing like the generated unmarshal code does: once err is set,
// every subsequent read is a no-op that returns a zero value.
type cursor struct {
	b   []byte
	err error
}

func newCursor(b []byte) *cursor { return &cursor{b: b} }

// tag returns the next field number/wire type, or ok=false at end of input
// or on error (check c.err to distinguish).
func (c *cursor) tag() (num protowire.Number, typ protowire.Type, ok bool) {
	if c.err != nil || len(c.b) == 0 {
		return 0, 0, false
	}
	num, typ, n := protowire.ConsumeTag(c.b)
	if n < 0 {
		c.err = protowire.ParseError(n)
		return 0, 0, false
	}
	c.b = c.b[n:]
	return num, typ, true
}

func (c *cursor) varint() uint64 {
	if c.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(c.b)
	if n < 0 {
		c.err = protowire.ParseError(n)
		return 0
	}
	c.b = c.b[n:]
	return v
}

func (c *cursor) zigzag() int64 {
	return protowire.DecodeZigZag(c.varint())
}

func (c *cursor) bytes() []byte {
	if c.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(c.b)
	if n < 0 {
		c.err = protowire.ParseError(n)
		return nil
	}
	c.b = c.b[n:]
	return v
}

// skip discards the value belonging to a tag the caller doesn't recognize.
// Unknown fields/arms are dropped without logging and never treated as a
// decode failure; a ClientMessage whose only arm is unknown decodes with a
// nil KeyEvent, which ingress.Dispatch then rejects.
func (c *cursor) skip(num protowire.Number, typ protowire.Type) {
	if c.err != nil {
		return
	}
	n := protowire.ConsumeFieldValue(num, typ, c.b)
	if n < 0 {
		c.err = protowire.ParseError(n)
		return
	}
	c.b = c.b[n:]
}
