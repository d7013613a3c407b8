package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCodec struct {
	name string
	uid  string
}

func (s *stubCodec) Encode(EncodeParams) ([]byte, error)  { return nil, nil }
func (s *stubCodec) Decode([]byte) (*DecodeResult, error) { return nil, nil }
func (s *stubCodec) UID() string                          { return s.uid }
func (s *stubCodec) Name() string                         { return s.name }

func TestRegistryLookup(t *testing.T) {
	r := &Registry{codecs: make(map[string]Codec)}
	c := &stubCodec{name: "stub", uid: "1.2.3.4"}
	r.Register(c)

	byName, err := r.Get("stub")
	require.NoError(t, err)
	assert.Same(t, Codec(c), byName)

	byUID, err := r.Get("1.2.3.4")
	require.NoError(t, err)
	assert.Same(t, Codec(c), byUID)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrCodecNotFound)
}

func TestRegistryListDeduplicates(t *testing.T) {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register(&stubCodec{name: "a", uid: "1"})
	r.Register(&stubCodec{name: "b", uid: "2"})
	assert.Len(t, r.List(), 2)
}

func TestDefaultRegistry(t *testing.T) {
	c := &stubCodec{name: "default-test", uid: "9.9.9"}
	Register(c)
	got, err := Get("9.9.9")
	require.NoError(t, err)
	assert.Same(t, Codec(c), got)
}
