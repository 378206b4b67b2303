// Package decode implements the fetch pipeline's stream transducers
// (spec.md §4.F): transfer decoders (identity, chunked), content decoders
// (identity, gzip), and charset decoders (identity, charset→UTF-8).
package decode

// Decoder is a stream transducer: bytes go in via Process, come out
// transformed, and Finalize flushes any trailing output. A decoder that
// hits an unrecoverable error becomes Exhausted: it produces no further
// bytes, without aborting the transfer that owns it (spec.md §4.F error
// policy — "the cache treats this as the end of useful data without
// aborting the transfer").
type Decoder interface {
	Process(data []byte) []byte
	Finalize() []byte
	Exhausted() bool
}

// identity passes bytes through unchanged; used by transfer, content, and
// charset families alike when no transformation applies.
type identity struct{}

func (identity) Process(data []byte) []byte { return data }
func (identity) Finalize() []byte           { return nil }
func (identity) Exhausted() bool            { return false }

// Identity returns the no-op decoder shared by all three families.
func Identity() Decoder { return identity{} }
