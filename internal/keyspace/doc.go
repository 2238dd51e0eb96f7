// Package keyspace maps the candidate path space onto integers.
//
// Every candidate path is a fixed-length string over an ordered alphabet.
// Codec converts between a path and its index (a base-N positional number,
// leftmost symbol most significant), and Partition splits an index span into
// contiguous ranges, one per worker.
//
//	codec, _ := keyspace.NewCodec(keyspace.DefaultAlphabet, 4)
//	codec.Decode(0)     // "aaaa"
//	codec.Encode("ajxc") // 6684
//
// Ranges are half-open and never overlap, so workers never coordinate on a
// shared cursor.
package keyspace
