package keyspace

import (
	"fmt"
	"math"
	"strings"
)

// DefaultAlphabet is the 26 lowercase ASCII letters.
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Alphabet is an ordered set of distinct symbols.
// A symbol's numeric value is its position in the set.
type Alphabet struct {
	symbols []rune
	values  map[rune]int64
}

// NewAlphabet builds an Alphabet from the symbols of s, in order.
func NewAlphabet(s string) (Alphabet, error) {
	symbols := []rune(s)
	if len(symbols) < 2 {
		return Alphabet{}, ErrAlphabetTooSmall
	}

	values := make(map[rune]int64, len(symbols))
	for i, r := range symbols {
		if _, dup := values[r]; dup {
			return Alphabet{}, fmt.Errorf("%w: %q", ErrDuplicateSymbol, r)
		}
		values[r] = int64(i)
	}

	return Alphabet{symbols: symbols, values: values}, nil
}

// Size returns the number of symbols.
func (a Alphabet) Size() int {
	return len(a.symbols)
}

// String returns the symbols as a string.
func (a Alphabet) String() string {
	return string(a.symbols)
}

// Codec converts between path indexes and fixed-length path strings.
// It is immutable and safe for concurrent use.
type Codec struct {
	alphabet Alphabet
	length   int
	total    int64
}

// NewCodec creates a codec for paths of the given length over the given
// alphabet symbols.
func NewCodec(symbols string, length int) (*Codec, error) {
	alphabet, err := NewAlphabet(symbols)
	if err != nil {
		return nil, err
	}
	return NewCodecFor(alphabet, length)
}

// NewCodecFor creates a codec from an already validated Alphabet.
func NewCodecFor(alphabet Alphabet, length int) (*Codec, error) {
	if alphabet.Size() < 2 {
		return nil, ErrAlphabetTooSmall
	}
	if length < 1 {
		return nil, ErrInvalidLength
	}

	base := int64(alphabet.Size())
	total := int64(1)
	for i := 0; i < length; i++ {
		if total > math.MaxInt64/base {
			return nil, fmt.Errorf("%w: %d^%d", ErrSpaceOverflow, base, length)
		}
		total *= base
	}

	return &Codec{alphabet: alphabet, length: length, total: total}, nil
}

// Length returns the fixed path length.
func (c *Codec) Length() int {
	return c.length
}

// Total returns the size of the index space, alphabet^length.
func (c *Codec) Total() int64 {
	return c.total
}

// Alphabet returns the codec's alphabet.
func (c *Codec) Alphabet() Alphabet {
	return c.alphabet
}

// Decode returns the path for index. The result always has Length symbols,
// left-padded with the first symbol of the alphabet.
//
// index must be in [0, Total()); anything else is a programming error and panics.
func (c *Codec) Decode(index int64) string {
	if index < 0 || index >= c.total {
		panic(fmt.Sprintf("keyspace: index %d out of range [0, %d)", index, c.total))
	}

	base := int64(len(c.alphabet.symbols))
	out := make([]rune, c.length)
	for i := c.length - 1; i >= 0; i-- {
		out[i] = c.alphabet.symbols[index%base]
		index /= base
	}
	return string(out)
}

// Encode returns the index of path.
func (c *Codec) Encode(path string) (int64, error) {
	symbols := []rune(path)
	if len(symbols) != c.length {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrPathLength, len(symbols), c.length)
	}

	base := int64(len(c.alphabet.symbols))
	var index int64
	for _, r := range symbols {
		v, ok := c.alphabet.values[r]
		if !ok {
			return 0, fmt.Errorf("%w: %q in %q", ErrUnknownSymbol, r, path)
		}
		index = index*base + v
	}
	return index, nil
}

// Last returns the final path of the space (every symbol the last one).
func (c *Codec) Last() string {
	last := c.alphabet.symbols[len(c.alphabet.symbols)-1]
	return strings.Repeat(string(last), c.length)
}
