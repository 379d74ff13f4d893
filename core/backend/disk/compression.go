package disk

import "fmt"

// zstdExt is appended to the leaf name of zstd-encoded files.
const zstdExt = ".zst"

// Compression identifies how content is encoded on disk.
type Compression uint8

const (
	// CompressionNone stores content bytes verbatim. Files are byte-identical
	// to what earlier deployments wrote.
	CompressionNone Compression = iota
	// CompressionZstd stores each file as a single zstd frame under the
	// leaf name with a .zst suffix.
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression parses "none" (or "") and "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("disk: unknown compression %q", s)
	}
}
