package octree

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Wire format, shared by every backend: a big endian int32 depth followed by the
// nodes in pre-order. A branch is the word BranchNode followed by its 8 children.
// A leaf is its type word; when DataFlag is set on it one data word follows.

type wireWriter struct {
	w   *bufio.Writer
	buf [4]byte
	err error
}

func newWireWriter(w io.Writer) *wireWriter {
	return &wireWriter{w: bufio.NewWriter(w)}
}

func (ww *wireWriter) word(v uint32) {
	if ww.err != nil {
		return
	}
	binary.BigEndian.PutUint32(ww.buf[:], v)
	_, ww.err = ww.w.Write(ww.buf[:])
}

func (ww *wireWriter) branch() {
	ww.word(uint32(0xffffffff))
}

func (ww *wireWriter) leaf(n Node) {
	if n.Data != 0 {
		ww.word(uint32(n.Type) | DataFlag)
		ww.word(uint32(int32(n.Data)))
		return
	}
	ww.word(uint32(n.Type))
}

func (ww *wireWriter) flush() error {
	if ww.err != nil {
		return errors.Wrap(ww.err, "writing octree")
	}
	return errors.Wrap(ww.w.Flush(), "writing octree")
}

// wireReader reads exactly the bytes it consumes: it does not buffer so that
// callers can keep reading whatever follows the octree stream.
type wireReader struct {
	r   io.Reader
	buf [4]byte
}

func newWireReader(r io.Reader) *wireReader {
	return &wireReader{r: r}
}

func (wr *wireReader) word() (uint32, error) {
	_, err := io.ReadFull(wr.r, wr.buf[:])
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading octree")
	}
	return binary.BigEndian.Uint32(wr.buf[:]), nil
}

func (wr *wireReader) depth() (int, error) {
	w, err := wr.word()
	if err != nil {
		return 0, err
	}
	depth := int(int32(w))
	if err := checkDepth(depth); err != nil {
		return 0, err
	}
	return depth, nil
}

// node reads a node header. For a branch the 8 children follow in the stream.
func (wr *wireReader) node() (n Node, branch bool, err error) {
	w, err := wr.word()
	if err != nil {
		return n, false, err
	}
	if int32(w) == BranchNode {
		return Node{Type: BranchNode}, true, nil
	}
	n.Type = int(w &^ DataFlag)
	if n.Type > AnyType {
		return n, false, errors.Wrapf(ErrMalformed, "leaf type %#x", n.Type)
	}
	if w&DataFlag != 0 {
		d, err := wr.word()
		if err != nil {
			return n, false, err
		}
		n.Data = int(int32(d))
	}
	return n, false, nil
}

func errBranchTooDeep() error {
	return errors.Wrap(ErrMalformed, "branch node at voxel level")
}
