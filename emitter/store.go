package emitter

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// GridFormatVersion is the version written by Store. Load also reads version 1,
// which has no block types.
const GridFormatVersion = 3

var (
	ErrUnsupportedVersion = errors.New("unsupported emitter grid version")
	ErrMalformed          = errors.New("malformed emitter grid")
)

// maxCells bounds the cell count accepted by Load.
const maxCells = 1 << 28

// Store writes a prepared grid as big endian int32 words: version, cell size,
// offset and size per axis, the emitters (x, y, z, block) and for every cell
// its emitter count followed by the emitter indexes.
func (g *Grid) Store(w io.Writer) error {
	g.mustBePrepared()
	bw := bufio.NewWriter(w)
	var buf []byte
	put := func(v int) { buf = binary.BigEndian.AppendUint32(buf, uint32(int32(v))) }
	flush := func() error {
		_, err := bw.Write(buf)
		buf = buf[:0]
		return err
	}
	put(GridFormatVersion)
	put(g.cellSize)
	for i := range g.offset {
		put(g.offset[i])
		put(g.size[i])
	}
	put(len(g.positions))
	for _, p := range g.positions {
		put(p.X)
		put(p.Y)
		put(p.Z)
		put(p.Block)
	}
	if err := flush(); err != nil {
		return errors.Wrap(err, "writing emitter grid")
	}
	for i := 0; i < g.numCells(); i++ {
		start, n := g.cells[2*i], g.cells[2*i+1]
		put(int(n))
		for _, idx := range g.positionIndexes[start : start+n] {
			put(int(idx))
		}
		if len(buf) > 4096 {
			if err := flush(); err != nil {
				return errors.Wrap(err, "writing emitter grid")
			}
		}
	}
	if err := flush(); err != nil {
		return errors.Wrap(err, "writing emitter grid")
	}
	return errors.Wrap(bw.Flush(), "writing emitter grid")
}

type gridReader struct {
	r   io.Reader
	buf [4]byte
}

func (gr *gridReader) int() (int, error) {
	if _, err := io.ReadFull(gr.r, gr.buf[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return int(int32(binary.BigEndian.Uint32(gr.buf[:]))), nil
}

// Load reads a grid written by Store. The returned grid is prepared.
func Load(r io.Reader) (*Grid, error) {
	gr := &gridReader{r: bufio.NewReader(r)}
	version, err := gr.int()
	if err != nil {
		return nil, errors.Wrap(err, "reading emitter grid version")
	}
	if version != 1 && version != GridFormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
	var header [7]int
	for i := range header {
		if header[i], err = gr.int(); err != nil {
			return nil, errors.Wrap(err, "reading emitter grid header")
		}
	}
	g, err := NewGrid(header[0])
	if err != nil {
		return nil, err
	}
	cells := 1
	for i := 0; i < 3; i++ {
		g.offset[i], g.size[i] = header[1+2*i], header[2+2*i]
		if g.size[i] < 0 || g.size[i] > maxCells {
			return nil, errors.Wrapf(ErrMalformed, "grid size %d", g.size[i])
		}
		cells *= g.size[i]
		if cells > maxCells {
			return nil, errors.Wrapf(ErrMalformed, "%d cells", cells)
		}
	}
	count, err := gr.int()
	if err != nil {
		return nil, errors.Wrap(err, "reading emitter count")
	}
	if count < 0 {
		return nil, errors.Wrapf(ErrMalformed, "emitter count %d", count)
	}
	for i := 0; i < count; i++ {
		var p Position
		if p.X, err = gr.int(); err == nil {
			if p.Y, err = gr.int(); err == nil {
				p.Z, err = gr.int()
			}
		}
		if err == nil && version == GridFormatVersion {
			p.Block, err = gr.int()
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading emitter %d", i)
		}
		g.positions = append(g.positions, p)
	}
	g.cells = make([]int32, 2*cells)
	for i := 0; i < cells; i++ {
		n, err := gr.int()
		if err != nil {
			return nil, errors.Wrapf(err, "reading cell %d", i)
		}
		if n < 0 || n > count*27 {
			return nil, errors.Wrapf(ErrMalformed, "cell %d lists %d emitters", i, n)
		}
		g.cells[2*i] = int32(len(g.positionIndexes))
		g.cells[2*i+1] = int32(n)
		for j := 0; j < n; j++ {
			idx, err := gr.int()
			if err != nil {
				return nil, errors.Wrapf(err, "reading cell %d", i)
			}
			if idx < 0 || idx >= count {
				return nil, errors.Wrapf(ErrMalformed, "cell %d references emitter %d of %d", i, idx, count)
			}
			g.positionIndexes = append(g.positionIndexes, int32(idx))
		}
	}
	for i, p := range g.positions {
		if i == 0 {
			g.min = [3]int{p.X, p.Y, p.Z}
			g.max = g.min
		}
		g.min = [3]int{min(g.min[0], p.X), min(g.min[1], p.Y), min(g.min[2], p.Z)}
		g.max = [3]int{max(g.max[0], p.X), max(g.max[1], p.Y), max(g.max[2], p.Z)}
	}
	g.buildIndex()
	g.prepared = true
	logger.Infof("loaded emitter grid: %d emitters, %d cells", count, cells)
	return g, nil
}
