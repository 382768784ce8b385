package uuidv7

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// Generator produces UUIDv7 values per RFC 9562 (time-ordered, millisecond
// precision). The zero value uses crypto/rand and the wall clock.
type Generator struct {
	Now    func() time.Time
	Random io.Reader
}

func (g Generator) New() (uuid.UUID, error) {
	var b [16]byte
	r := g.Random
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return uuid.Nil, err
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ms := uint64(now().UnixMilli())
	b[0] = byte(ms >> 40)
	b[1] = byte(ms >> 32)
	b[2] = byte(ms >> 24)
	b[3] = byte(ms >> 16)
	b[4] = byte(ms >> 8)
	b[5] = byte(ms)

	// Version 7 (0b0111)
	b[6] = (b[6] & 0x0f) | 0x70
	// Variant RFC 4122 (0b10xxxxxx)
	b[8] = (b[8] & 0x3f) | 0x80

	return uuid.FromBytes(b[:])
}

func (g Generator) NewString() (string, error) {
	u, err := g.New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// New returns a UUIDv7 from the default generator.
func New() (uuid.UUID, error) { return Generator{}.New() }

// NewString returns UUIDv7 string.
func NewString() (string, error) { return Generator{}.NewString() }

// Timestamp extracts the embedded creation time of a UUIDv7 string.
func Timestamp(id string) (time.Time, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	if u.Version() != 7 {
		return time.Time{}, errors.New("uuidv7: not a version 7 uuid")
	}
	ms := int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 | int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
	return time.UnixMilli(ms).UTC(), nil
}
