package altofs

import (
	"fmt"

	"altofs/internal/diskimage"
)

// DiskDescriptor is the file system's DiskDescriptor. file, holding disk
// geometry, the running file serial number and the free-page bitmap.
type DiskDescriptor struct {
	fs   *FileSystem
	file *File
	acc  *diskimage.Accessor

	bitmapBase int
	nVDAs      int
}

func (fs *FileSystem) openDiskDescriptor() (*DiskDescriptor, error) {
	f, err := fs.lookupFile("DiskDescriptor.")
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, diskimage.NewError(diskimage.KindFileNotFound, "cannot find DiskDescriptor.").WithName("DiskDescriptor.")
	}
	dd := &DiskDescriptor{
		fs:         fs,
		file:       f,
		acc:        f.Accessor(),
		bitmapBase: fs.geom.BitmapWordOffset(),
		nVDAs:      fs.geom.NVDAs(),
	}

	nDisks, err := dd.acc.GetWord(diskimage.KDHnDisks)
	if err != nil {
		return nil, err
	}
	if int(nDisks) == 2 && fs.geom.Disks == 1 {
		if err := fs.back.AttachSecondDrive(); err != nil {
			return nil, err
		}
		fs.geom = fs.back.Geometry()
		dd.nVDAs = fs.geom.NVDAs()
	}

	mismatch := false
	if int(nDisks) != fs.geom.Disks {
		mismatch = true
	}
	if w, err := dd.acc.GetWord(diskimage.KDHnTracks); err != nil {
		return nil, err
	} else if int(w) != fs.geom.Tracks {
		mismatch = true
	}
	if w, err := dd.acc.GetWord(diskimage.KDHnHeads); err != nil {
		return nil, err
	} else if int(w) != fs.geom.Heads {
		mismatch = true
	}
	if w, err := dd.acc.GetWord(diskimage.KDHnSectors); err != nil {
		return nil, err
	} else if int(w) != fs.geom.SectorsPerTrack {
		mismatch = true
	}
	if mismatch {
		return nil, diskimage.NewError(diskimage.KindGeometryMismatch, fmt.Sprintf(
			"DiskDescriptor disks=%d tracks=%d heads=%d sectors=%d does not match image geometry",
			nDisks, mustWord(dd.acc, diskimage.KDHnTracks), mustWord(dd.acc, diskimage.KDHnHeads), mustWord(dd.acc, diskimage.KDHnSectors)))
	}

	// Reconcile the free-page count against the bitmap: the original
	// format tolerates the two drifting apart (e.g. after an unclean
	// shutdown) and repairs the count on open, logging the change.
	freeCount := 0
	for vda := 0; vda < dd.nVDAs; vda++ {
		free, err := dd.IsPageFree(vda)
		if err != nil {
			return nil, err
		}
		if free {
			freeCount++
		}
	}
	stored, err := dd.acc.GetWord(diskimage.KDHfreePages)
	if err != nil {
		return nil, err
	}
	if int(stored) != freeCount {
		if err := dd.acc.SetWord(diskimage.KDHfreePages, uint16(freeCount)); err != nil {
			return nil, err
		}
		fs.logf("DiskDescriptor free page count updated from %d to %d", stored, freeCount)
	}

	return dd, nil
}

func mustWord(acc *diskimage.Accessor, idx int) uint16 {
	w, _ := acc.GetWord(idx)
	return w
}

// IsPageFree reports the bitmap bit for vda: one bit per page, MSB-first
// within each 16-bit word, 1 meaning in-use.
func (dd *DiskDescriptor) IsPageFree(vda int) (bool, error) {
	w := vda / 16
	b := uint(vda % 16)
	word, err := dd.acc.GetWord(dd.bitmapBase + w)
	if err != nil {
		return false, err
	}
	return word&(0x8000>>b) == 0, nil
}

// SetPageBit sets or clears vda's bitmap bit and adjusts the stored free
// count by freeCountDelta in the same step.
func (dd *DiskDescriptor) SetPageBit(vda int, used bool, freeCountDelta int) error {
	w := vda / 16
	b := uint(vda % 16)
	word, err := dd.acc.GetWord(dd.bitmapBase + w)
	if err != nil {
		return err
	}
	if used {
		word |= 0x8000 >> b
	} else {
		word &^= 0x8000 >> b
	}
	if err := dd.acc.SetWord(dd.bitmapBase+w, word); err != nil {
		return err
	}
	free, err := dd.acc.GetWord(diskimage.KDHfreePages)
	if err != nil {
		return err
	}
	return dd.acc.SetWord(diskimage.KDHfreePages, uint16(int(free)+freeCountDelta))
}

// Allocate finds a free page, marks it in use and returns its VDA.
func (dd *DiskDescriptor) Allocate() (int, error) {
	for vda := 0; vda < dd.nVDAs; vda++ {
		free, err := dd.IsPageFree(vda)
		if err != nil {
			return 0, err
		}
		if free {
			if err := dd.SetPageBit(vda, true, -1); err != nil {
				return 0, err
			}
			return vda, nil
		}
	}
	return 0, diskimage.NewError(diskimage.KindOutOfSpace, "no free page available")
}

// Free marks vda free.
func (dd *DiskDescriptor) Free(vda int) error {
	return dd.SetPageBit(vda, false, 1)
}

// nextSerial returns the next file serial number to assign, as (hi, lo),
// advancing the stored counter. The low word always wraps on overflow; the
// high word only advances too when the file system was opened with
// CarrySerial (see OpenOptions).
func (dd *DiskDescriptor) nextSerial() (hi, lo uint16, err error) {
	hi, err = dd.acc.GetWord(diskimage.KDHlastSerialHi)
	if err != nil {
		return 0, 0, err
	}
	lo, err = dd.acc.GetWord(diskimage.KDHlastSerialLo)
	if err != nil {
		return 0, 0, err
	}
	lo++
	if lo == 0 && dd.fs.opts.CarrySerial {
		hi++
	}
	if err := dd.acc.SetWord(diskimage.KDHlastSerialHi, hi); err != nil {
		return 0, 0, err
	}
	if err := dd.acc.SetWord(diskimage.KDHlastSerialLo, lo); err != nil {
		return 0, 0, err
	}
	return hi, lo, nil
}
