package core

import (
	"crypto/md5"  //nolint:gosec // md5 ids are accepted for compatibility with existing layouts
	"crypto/sha1" //nolint:gosec // sha1 ids are accepted for compatibility with existing layouts
	"crypto/sha256"
	_ "crypto/sha512" // registers SHA-384/512 for go-digest
	"encoding/hex"
	"fmt"
	"hash"
	"slices"

	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

const (
	// DefaultAlgorithm is the hash algorithm used when none is configured.
	DefaultAlgorithm = "sha256"

	// DefaultLength is the identifier length used when none is configured.
	DefaultLength = 5
)

// algorithm describes one supported hash. Algorithms that go-digest knows
// about are computed through it; the rest fall back to a hash.Hash factory.
type algorithm struct {
	digest  digest.Algorithm
	newHash func() hash.Hash
}

// Names double as the top-level directory of the disk layout and must match
// the names existing deployments wrote under.
var algorithms = map[string]algorithm{
	"sha256":   {digest: digest.SHA256},
	"sha384":   {digest: digest.SHA384},
	"sha512":   {digest: digest.SHA512},
	"sha224":   {newHash: sha256.New224},
	"sha1":     {newHash: sha1.New},
	"md5":      {newHash: md5.New},
	"sha3_224": {newHash: sha3.New224},
	"sha3_256": {newHash: sha3.New256},
	"sha3_384": {newHash: sha3.New384},
	"sha3_512": {newHash: sha3.New512},
	"blake2b":  {newHash: newBlake2b},
	"blake2s":  {newHash: newBlake2s},
	"blake3":   {newHash: func() hash.Hash { return blake3.New() }},
}

func newBlake2b() hash.Hash {
	h, _ := blake2b.New512(nil) //nolint:errcheck // only fails for oversized keys
	return h
}

func newBlake2s() hash.Hash {
	h, _ := blake2s.New256(nil) //nolint:errcheck // only fails for oversized keys
	return h
}

// Algorithms returns the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Hasher derives identifiers from content.
// A Hasher is immutable and safe for concurrent use.
type Hasher struct {
	name   string
	length int
	alg    algorithm
}

// NewHasher returns a Hasher for the named algorithm producing identifiers of
// length hex characters. It returns a *ConfigError if the algorithm is unknown
// or length is outside [1, digest hex length].
func NewHasher(name string, length int) (*Hasher, error) {
	alg, ok := algorithms[name]
	if !ok {
		return nil, &ConfigError{Field: "hash.algorithm", Reason: fmt.Sprintf("unsupported algorithm %q", name)}
	}
	if alg.newHash == nil && !alg.digest.Available() {
		return nil, &ConfigError{Field: "hash.algorithm", Reason: fmt.Sprintf("algorithm %q is not linked into this binary", name)}
	}
	h := &Hasher{name: name, length: length, alg: alg}
	if maxLen := h.hexLen(); length < 1 || length > maxLen {
		return nil, &ConfigError{
			Field:  "hash.length",
			Reason: fmt.Sprintf("length %d out of range [1, %d] for %s", length, maxLen, name),
		}
	}
	return h, nil
}

// Algorithm returns the configured algorithm name.
func (h *Hasher) Algorithm() string { return h.name }

// Length returns the identifier length in characters.
func (h *Hasher) Length() int { return h.length }

// Hash returns the identifier for content.
func (h *Hasher) Hash(content []byte) ID {
	return ID(h.Digest(content)[:h.length])
}

// Digest returns the full lowercase hex digest of content.
func (h *Hasher) Digest(content []byte) string {
	if h.alg.newHash == nil {
		return h.alg.digest.FromBytes(content).Encoded()
	}
	hh := h.alg.newHash()
	hh.Write(content) //nolint:errcheck // hash.Hash writes never fail
	return hex.EncodeToString(hh.Sum(nil))
}

// Parse validates s as an identifier produced by this Hasher.
func (h *Hasher) Parse(s string) (ID, error) {
	return ParseID(s, h.length)
}

// Path resolves the shard path for id under this Hasher's configuration.
func (h *Hasher) Path(id ID) (ShardPath, error) {
	return Resolve(h.name, h.length, id)
}

func (h *Hasher) hexLen() int {
	if h.alg.newHash == nil {
		return h.alg.digest.Size() * 2
	}
	return h.alg.newHash().Size() * 2
}
