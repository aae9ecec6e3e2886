package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// Redacted is the rendering of every Value in logs and diffs.
const Redacted = "[REDACTED]"

// ErrNotSerializable is returned by every marshaling method of Value.
var ErrNotSerializable = errors.New("secret values cannot be serialized")

// Value holds sensitive bytes. The zero Value is empty.
type Value struct {
	b []byte
}

// New copies b into a new Value.
func New(b []byte) Value {
	if len(b) == 0 {
		return Value{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return Value{b: c}
}

// NewString creates a Value from a string.
func NewString(s string) Value {
	return New([]byte(s))
}

// Reveal returns a copy of the plaintext.
func (v Value) Reveal() []byte {
	if len(v.b) == 0 {
		return nil
	}
	c := make([]byte, len(v.b))
	copy(c, v.b)
	return c
}

// IsZero reports whether the value is empty.
func (v Value) IsZero() bool {
	return len(v.b) == 0
}

// Len returns the plaintext length.
func (v Value) Len() int {
	return len(v.b)
}

// Equal compares two values in constant time.
func (v Value) Equal(o Value) bool {
	return subtle.ConstantTimeCompare(v.b, o.b) == 1
}

// Wipe zeroes the underlying buffer. Copies obtained with Reveal are not affected.
func (v Value) Wipe() {
	for i := range v.b {
		v.b[i] = 0
	}
}

func (v Value) String() string   { return Redacted }
func (v Value) GoString() string { return Redacted }

// Format makes every fmt verb print the redacted form.
func (v Value) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Redacted))
}

func (v Value) MarshalJSON() ([]byte, error)   { return nil, ErrNotSerializable }
func (v Value) MarshalText() ([]byte, error)   { return nil, ErrNotSerializable }
func (v Value) MarshalBinary() ([]byte, error) { return nil, ErrNotSerializable }
func (v Value) MarshalCBOR() ([]byte, error)   { return nil, ErrNotSerializable }
func (v Value) MarshalYAML() (any, error)      { return nil, ErrNotSerializable }
