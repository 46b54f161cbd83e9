package altofs

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"altofs/internal/diskimage"
)

// dumpFakeBackingToFile concatenates a fakeBacking's sectors in vda order
// and writes them to path. The small family's ImagePosition is the
// identity, so vda order is image order.
func dumpFakeBackingToFile(t *testing.T, back *fakeBacking, path string) {
	t.Helper()
	buf := make([]byte, 0, len(back.sectors)*back.geom.SectorBytes())
	for _, s := range back.sectors {
		buf = append(buf, s...)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("write image: %v", err)
	}
}

// newRealSmallFixture builds the same kind of minimal file system as
// newFixture, but sized to a real cartridge-disk geometry (203 tracks, one
// drive) and written out to a real .dsk file under t.TempDir(), so it can
// be driven through the production Open/Close path end to end.
func newRealSmallFixture(t *testing.T) string {
	t.Helper()
	g := diskimage.Geometry{
		Family: diskimage.FamilySmall, HeaderWords: 2, LabelWords: 8, DataWords: 256,
		SectorsPerTrack: 12, Heads: 2, Tracks: 203, Disks: 1,
	}
	back := newFakeBacking(g)

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
	writeDataPage := func(vda int, next, prev diskimage.DA, pageNum int, serialLo uint16) {
		acc := diskimage.NewSectorAccessor(back, g, vda)
		if err := acc.SetLabel(diskimage.Label{
			Next: next, Previous: prev, NumChars: dataBlockBytes, PageNumber: uint16(pageNum),
			FIDVersion: 1, FIDSerialHi: 0, FIDSerialLo: serialLo,
		}); err != nil {
			t.Fatalf("write data label vda=%d: %v", vda, err)
		}
	}

	da1, _ := g.VDAToDA(1)
	da2, _ := g.VDAToDA(2)
	da3, _ := g.VDAToDA(3)
	da4, _ := g.VDAToDA(4)
	da5, _ := g.VDAToDA(5)

	writeLeader(1, da2, zero, "SysDir.", 1)
	writeDataPage(2, zero, da1, 1, 1)
	dirData := diskimage.NewSectorAccessor(back, g, 2)
	if err := dirData.SetWord(0, uint16(g.DataWords)); err != nil {
		t.Fatalf("seed directory free entry: %v", err)
	}

	// A full cartridge's bitmap (4872 bits from word 16 on) runs past one
	// 256-word data page, so DiskDescriptor. spans two data pages here.
	writeLeader(3, da4, zero, "DiskDescriptor.", 2)
	writeDataPage(4, da5, da3, 1, 2)
	writeDataPage(5, zero, da4, 2, 2)

	ddData := diskimage.NewFileAccessor(back, g, []int{3, 4, 5})
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
	setWord(diskimage.KDHfreePages, uint16(g.NVDAs()-6))
	bitmapBase := g.BitmapWordOffset()
	setWord(bitmapBase, 0xFC00) // vdas 0-5 in use

	fs := &FileSystem{back: back, geom: g, opts: OpenOptions{Logger: log.New(io.Discard, "", 0)}}
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

	if _, err := fs.Create("Note.", 40); err != nil {
		t.Fatalf("Create(Note.): %v", err)
	}

	path := filepath.Join(t.TempDir(), "real0.dsk")
	dumpFakeBackingToFile(t, back, path)
	return path
}

// TestRealSmallFileRoundTrip drives the production Open/Close path against
// a real cartridge-disk image: a byte written through one FileSystem handle
// is visible, unchanged, to a second handle opened fresh from the same
// path after the first is closed.
func TestRealSmallFileRoundTrip(t *testing.T) {
	path := newRealSmallFixture(t)

	fs, err := Open(path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f, err := fs.Open("Note.")
	if err != nil {
		t.Fatalf("Open(Note.): %v", err)
	}
	acc := f.Accessor()
	want := "a fixture note"
	for i := 0; i < len(want); i++ {
		if err := acc.SetByte(i, want[i]); err != nil {
			t.Fatalf("SetByte(%d): %v", i, err)
		}
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, OpenOptions{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Open("Note.")
	if err != nil {
		t.Fatalf("Open(Note.) after reopen: %v", err)
	}
	gotAcc := got.Accessor()
	for i := 0; i < len(want); i++ {
		b, err := gotAcc.GetByte(i)
		if err != nil {
			t.Fatalf("GetByte(%d): %v", i, err)
		}
		if b != want[i] {
			t.Fatalf("byte %d = %q, want %q", i, b, want[i])
		}
	}

	report, err := reopened.Check()
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(report.Violations) != 0 {
		t.Errorf("Check() on real round-tripped image found violations: %v", report.Violations)
	}
}
