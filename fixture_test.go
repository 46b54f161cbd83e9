package altofs

import (
	"io"
	"log"
	"testing"

	"altofs/internal/diskimage"
)

// fakeBacking is a minimal in-memory diskimage.Backing used to build
// synthetic file systems for tests, without going through Open's
// extension/size based family detection.
type fakeBacking struct {
	geom    diskimage.Geometry
	sectors [][]byte
}

func newFakeBacking(g diskimage.Geometry) *fakeBacking {
	b := &fakeBacking{geom: g, sectors: make([][]byte, g.NVDAs())}
	for i := range b.sectors {
		b.sectors[i] = make([]byte, g.SectorBytes())
	}
	return b
}

func (b *fakeBacking) Geometry() diskimage.Geometry { return b.geom }

func (b *fakeBacking) Get(vda int, writable bool) ([]byte, error) {
	if vda < 0 || vda >= len(b.sectors) {
		return nil, diskimage.NewError(diskimage.KindBadAddress, "vda out of range").WithVDA(vda)
	}
	return b.sectors[vda], nil
}

func (b *fakeBacking) AttachSecondDrive() error {
	return diskimage.NewError(diskimage.KindSecondDriveMissing, "fakeBacking has no second drive")
}

func (b *fakeBacking) Close() error { return nil }

// newFixture builds a tiny, complete, valid file system: a one-disk,
// one-track small-family geometry (24 VDAs) with vda0 as an unused boot
// page, SysDir. at leader vda1/data vda2, DiskDescriptor. at leader
// vda3/data vda4, and vdas 5..23 free for Create to allocate from.
func newFixture(t *testing.T) *FileSystem {
	t.Helper()

	g := diskimage.Geometry{
		Family: diskimage.FamilySmall, HeaderWords: 2, LabelWords: 8, DataWords: 256,
		SectorsPerTrack: 12, Heads: 2, Tracks: 1, Disks: 1,
	}
	back := newFakeBacking(g)

	// Every page starts out free, per I1.
	for vda := 0; vda < g.NVDAs(); vda++ {
		acc := diskimage.NewSectorAccessor(back, g, vda)
		if err := acc.SetLabel(diskimage.Label{FIDVersion: 0xFFFF, FIDSerialHi: 0xFFFF, FIDSerialLo: 0xFFFF}); err != nil {
			t.Fatalf("seed free label vda=%d: %v", vda, err)
		}
	}

	zero, _ := g.VDAToDA(0)
	dataBlockBytes := uint16(g.DataWords * 2)

	writeLeader := func(vda int, next, prev diskimage.DA, name string, serialLo uint16) {
		acc := diskimage.NewSectorAccessor(back, g, vda)
		if err := acc.WriteString(diskimage.LeaderName, name); err != nil {
			t.Fatalf("write leader name %q: %v", name, err)
		}
		if err := acc.SetLabel(diskimage.Label{
			Next: next, Previous: prev, NumChars: dataBlockBytes, PageNumber: 0,
			FIDVersion: 1, FIDSerialHi: 0, FIDSerialLo: serialLo,
		}); err != nil {
			t.Fatalf("write leader label %q: %v", name, err)
		}
	}
	writeDataPage := func(vda int, prev diskimage.DA, serialLo uint16) {
		acc := diskimage.NewSectorAccessor(back, g, vda)
		if err := acc.SetLabel(diskimage.Label{
			Next: zero, Previous: prev, NumChars: dataBlockBytes, PageNumber: 1,
			FIDVersion: 1, FIDSerialHi: 0, FIDSerialLo: serialLo,
		}); err != nil {
			t.Fatalf("write data label vda=%d: %v", vda, err)
		}
	}

	da1, _ := g.VDAToDA(1)
	da2, _ := g.VDAToDA(2)
	da3, _ := g.VDAToDA(3)
	da4, _ := g.VDAToDA(4)

	writeLeader(1, da2, zero, "SysDir.", 1)
	writeDataPage(2, da1, 1)
	// The directory's sole data page starts as one free entry spanning
	// the whole page.
	dirData := diskimage.NewSectorAccessor(back, g, 2)
	if err := dirData.SetWord(0, uint16(g.DataWords)); err != nil {
		t.Fatalf("seed directory free entry: %v", err)
	}

	writeLeader(3, da4, zero, "DiskDescriptor.", 2)
	writeDataPage(4, da3, 2)

	ddData := diskimage.NewSectorAccessor(back, g, 4)
	setWord := func(idx int, w uint16) {
		if err := ddData.SetWord(idx, w); err != nil {
			t.Fatalf("seed disk descriptor word %d: %v", idx, err)
		}
	}
	setWord(diskimage.KDHnDisks, uint16(g.Disks))
	setWord(diskimage.KDHnTracks, uint16(g.Tracks))
	setWord(diskimage.KDHnHeads, uint16(g.Heads))
	setWord(diskimage.KDHnSectors, uint16(g.SectorsPerTrack))
	setWord(diskimage.KDHlastSerialHi, 0)
	setWord(diskimage.KDHlastSerialLo, 2)
	setWord(diskimage.KDHfreePages, uint16(g.NVDAs()-5)) // 0..4 in use
	bitmapBase := g.BitmapWordOffset()
	setWord(bitmapBase, 0xF800) // vdas 0-4 in use (top 5 bits of word 0)
	setWord(bitmapBase+1, 0x0000)

	fs := &FileSystem{
		back: back,
		geom: g,
		opts: OpenOptions{Logger: log.New(io.Discard, "", 0)},
	}

	var err error
	fs.directory, err = fs.openDirectory()
	if err != nil {
		t.Fatalf("openDirectory: %v", err)
	}
	if err := fs.directory.add("DiskDescriptor.", [fpWords]uint16{0, 2, 1, 0, 3}); err != nil {
		t.Fatalf("seed DiskDescriptor. directory entry: %v", err)
	}
	fs.descriptor, err = fs.openDiskDescriptor()
	if err != nil {
		t.Fatalf("openDiskDescriptor: %v", err)
	}
	return fs
}
