package diskimage

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// smallBacking implements Backing for the cartridge-disk family by
// slurping the whole image into memory, matching the Diablo strategy in
// the original implementation: images of this size are small enough that
// whole-image buffering is simpler and fast enough, and it lets a second
// drive's sectors be appended transparently.
type smallBacking struct {
	path    string
	path2   string // set once a second drive has been attached
	geom    Geometry
	sectors [][]byte
	dirty   bool
	closed  bool
}

func newSmallBacking(path string, g Geometry) (*smallBacking, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "diskimage: open small-family image")
	}
	defer f.Close()

	b := &smallBacking{path: path, geom: g}
	if err := b.readInto(f, g.NVDAs()); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *smallBacking) readInto(f *os.File, n int) error {
	secBytes := b.geom.SectorBytes()
	for i := 0; i < n; i++ {
		buf := make([]byte, secBytes)
		if _, err := f.Read(buf); err != nil {
			return errors.Wrap(err, "diskimage: read small-family sector")
		}
		b.sectors = append(b.sectors, buf)
	}
	return nil
}

func (b *smallBacking) Geometry() Geometry { return b.geom }

func (b *smallBacking) Get(vda int, writable bool) ([]byte, error) {
	if vda < 0 || vda >= len(b.sectors) {
		return nil, NewError(KindBadAddress, "vda out of range").WithVDA(vda)
	}
	if writable {
		b.dirty = true
	}
	return b.sectors[vda], nil
}

// AttachSecondDrive locates a sibling image by replacing the last '0' in
// the primary path with '1', appends its sectors, and doubles nVDAs,
// mirroring how a second physical drive's sectors extend the addressable
// space.
func (b *smallBacking) AttachSecondDrive() error {
	if b.geom.Disks == 2 && b.path2 != "" {
		return nil // already attached
	}
	idx := strings.LastIndex(b.path, "0")
	if idx == -1 {
		return NewError(KindSecondDriveMissing, "primary path has no '0' to substitute").WithName(b.path)
	}
	path2 := b.path[:idx] + "1" + b.path[idx+1:]

	f, err := os.Open(path2)
	if err != nil {
		return NewError(KindSecondDriveMissing, "sibling image not found").WithName(path2).WithCause(err)
	}
	defer f.Close()

	n := len(b.sectors)
	if err := b.readInto(f, n); err != nil {
		return err
	}
	b.path2 = path2
	b.geom.Disks = 2
	return nil
}

// Close writes every sector sequentially across the one or two image
// files, skipping the write entirely if nothing was modified (mirrors
// write_disk's "if not dirty: return").
func (b *smallBacking) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if !b.dirty {
		return nil
	}

	writeN := len(b.sectors)
	if b.path2 != "" {
		writeN /= 2
	}

	if err := writeSectors(b.path, b.sectors[:writeN]); err != nil {
		return err
	}
	if b.path2 != "" {
		if err := writeSectors(b.path2, b.sectors[writeN:]); err != nil {
			return err
		}
	}
	return nil
}

// writeSectors persists sectors to path via a temp-file-and-rename so a
// process killed mid-flush never leaves a half-written image in place; the
// in-progress write itself is not crash-safe since sectors are buffered and
// flushed in bulk.
func writeSectors(path string, sectors [][]byte) error {
	fi, err := os.Stat(path)
	perm := os.FileMode(0644)
	if err == nil {
		perm = fi.Mode().Perm()
	}
	buf := make([]byte, 0, len(sectors)*len(sectors[0]))
	for _, s := range sectors {
		buf = append(buf, s...)
	}
	if err := writeFileAtomic(path, buf, perm); err != nil {
		return errors.Wrapf(err, "diskimage: write %s", path)
	}
	return nil
}
