package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/harborctl/sentinel/internal/apperr"
)

// HashContent returns the hex-encoded SHA-256 digest of raw file bytes
// (spec §4.6: "a cryptographic content hash, at least 256-bit").
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// writeBlob compresses raw and writes it to the content pool under its
// hash, skipping the write if an entry already exists for that hash
// (spec §4.6 dedup). Returns the hash used as the pool key.
func (s *Store) writeBlob(layout Layout, raw []byte) (string, error) {
	hash := HashContent(raw)
	path := layout.ContentPoolFile(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("snapshot: create zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return "", fmt.Errorf("snapshot: compress blob: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("snapshot: finalize compressed blob: %w", err)
	}

	if err := atomicWrite(path, buf.Bytes()); err != nil {
		return "", err
	}
	return hash, nil
}

// readBlob decompresses the pool entry for hash.
func (s *Store) readBlob(layout Layout, hash string) ([]byte, error) {
	path := layout.ContentPoolFile(hash)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.KindCorruption, fmt.Sprintf("content pool entry %s missing", hash), err)
		}
		return nil, fmt.Errorf("snapshot: open content pool entry %s: %w", hash, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress content pool entry %s: %w", hash, err)
	}
	return data, nil
}
