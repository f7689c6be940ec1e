package octree

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// FileVersion is the version written by Save.
const FileVersion = 1

// DigestSize is the length of the BLAKE3 trailer of octree files.
const DigestSize = 32

// Save writes the octree file format: a big endian int32 version, an int64 node
// count, the wire stream and a BLAKE3 digest of everything before it.
func Save(w io.Writer, o *Octree) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	h := blake3.New()
	mw := io.MultiWriter(w, h)
	var header [12]byte
	binary.BigEndian.PutUint32(header[:4], FileVersion)
	binary.BigEndian.PutUint64(header[4:], uint64(o.impl.NodeCount()))
	if _, err := mw.Write(header[:]); err != nil {
		return errors.Wrap(err, "writing octree header")
	}
	if err := o.impl.Store(mw); err != nil {
		return err
	}
	_, err := w.Write(h.Sum(nil))
	return errors.Wrap(err, "writing octree digest")
}

// Open reads an octree file written by Save into the named implementation.
// The stream is verified against its digest before the octree is returned.
func Open(r io.Reader, implName string) (*Octree, error) {
	br := bufio.NewReader(r)
	h := blake3.New()
	tr := io.TeeReader(br, h)
	var header [12]byte
	if _, err := io.ReadFull(tr, header[:]); err != nil {
		return nil, errors.Wrap(err, "reading octree header")
	}
	version := binary.BigEndian.Uint32(header[:4])
	if version != FileVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
	count := int64(binary.BigEndian.Uint64(header[4:]))
	o, err := loadWithHint(implName, tr, count)
	if err != nil {
		return nil, err
	}
	var digest [DigestSize]byte
	if _, err := io.ReadFull(br, digest[:]); err != nil {
		return nil, errors.Wrap(err, "reading octree digest")
	}
	if !bytes.Equal(digest[:], h.Sum(nil)) {
		return nil, ErrDigestMismatch
	}
	logger.Infof("loaded %s octree of depth %d, %d nodes", o.name, o.impl.Depth(), count)
	return o, nil
}

// SaveFile writes the octree to a file at path.
func SaveFile(path string, o *Octree) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Save(f, o); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// OpenFile reads an octree file from path.
func OpenFile(path, implName string) (*Octree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Open(f, implName)
}

// Digest returns the BLAKE3 hash of the octree wire stream. Equal trees give equal
// digests regardless of the backend, except that PACKED drops data words.
func Digest(o *Octree) ([DigestSize]byte, error) {
	var sum [DigestSize]byte
	h := blake3.New()
	if err := o.Store(h); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
