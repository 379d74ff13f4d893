package core

import (
	"fmt"
	"strconv"
	"strings"
)

// shardWidth is the number of identifier characters per directory level.
// Two hex characters bound every level to 256 entries.
const shardWidth = 2

// ShardPath locates an identifier in the persistent tier.
//
// For algorithm "sha256", length 5 and identifier "abcd1" the segments are
// sha256, l5, ab, cd, abcd1. Directory slices are taken from the front of the
// identifier while fewer than two characters of it would remain, so
// identifiers of length 2 or less sit directly under the l<L> segment.
type ShardPath struct {
	Algorithm string
	Length    int
	ID        ID
}

// Resolve returns the shard path for id. It fails with ErrInvalidID when id
// is not a well-formed identifier of the given length.
func Resolve(algorithm string, length int, id ID) (ShardPath, error) {
	if algorithm == "" || strings.ContainsAny(algorithm, `/\`) || algorithm == "." || algorithm == ".." {
		return ShardPath{}, fmt.Errorf("%w: algorithm %q is not a valid path segment", ErrInvalidID, algorithm)
	}
	if _, err := ParseID(string(id), length); err != nil {
		return ShardPath{}, err
	}
	return ShardPath{Algorithm: algorithm, Length: length, ID: id}, nil
}

// Segments returns the path segments from the root down to the leaf.
func (p ShardPath) Segments() []string {
	id := string(p.ID)
	segs := make([]string, 0, 3+p.Length/shardWidth)
	segs = append(segs, p.Algorithm, "l"+strconv.Itoa(p.Length))
	for i := 0; i < p.Length-shardWidth; i += shardWidth {
		segs = append(segs, id[i:i+shardWidth])
	}
	return append(segs, id)
}

// Dirs returns the directory segments, excluding the leaf.
func (p ShardPath) Dirs() []string {
	segs := p.Segments()
	return segs[:len(segs)-1]
}

// Key returns the slash-separated path, used as the object key by backends
// that are not hierarchical filesystems.
func (p ShardPath) Key() string {
	return strings.Join(p.Segments(), "/")
}

// String returns Key.
func (p ShardPath) String() string { return p.Key() }
