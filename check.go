package altofs

import (
	"fmt"

	"altofs/internal/diskimage"
)

// Violation records one consistency problem found by Check.
type Violation struct {
	Kind diskimage.ErrorKind
	VDA  int // -1 when not applicable
	Name string
	Msg  string
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s: %s", v.Kind, v.Msg)
	if v.VDA >= 0 {
		s += fmt.Sprintf(" (vda=%d)", v.VDA)
	}
	if v.Name != "" {
		s += fmt.Sprintf(" (name=%q)", v.Name)
	}
	return s
}

// CheckReport is the result of a read-only consistency walk.
type CheckReport struct {
	Violations []Violation
}

func (r *CheckReport) add(kind diskimage.ErrorKind, vda int, name, msg string) {
	r.Violations = append(r.Violations, Violation{Kind: kind, VDA: vda, Name: name, Msg: msg})
}

// Check walks the directory and the free-page bitmap and confirms
// invariants I1-I4, without repairing anything beyond the freePages
// reconciliation that Open already performs. It does not re-examine the
// descriptor's geometry words (I5); Open refuses an image whose geometry
// does not match. It does not mutate the image.
func (fs *FileSystem) Check() (CheckReport, error) {
	var report CheckReport

	inUse := make([]bool, fs.geom.NVDAs())
	for _, vda := range fs.directory.file.Pages {
		inUse[vda] = true
	}
	for _, vda := range fs.descriptor.file.Pages {
		inUse[vda] = true
	}

	entries, err := fs.directory.List()
	if err != nil {
		return report, err
	}

	seenSerial := map[[2]uint16]string{}
	for _, e := range entries {
		f, err := fs.openFileByLeader(e.LeaderVDA)
		if err != nil {
			report.add(diskimage.KindInvariantViolation, e.LeaderVDA, e.Name, "failed to walk file: "+err.Error())
			continue
		}
		for i, vda := range f.Pages {
			if vda < 0 || vda >= len(inUse) {
				report.add(diskimage.KindInvariantViolation, vda, e.Name, "page index out of range")
				continue
			}
			inUse[vda] = true // I2

			acc := diskimage.NewSectorAccessor(fs.back, fs.geom, vda)
			label, err := acc.GetLabel()
			if err != nil {
				report.add(diskimage.KindInvariantViolation, vda, e.Name, "failed to read label: "+err.Error())
				continue
			}
			if i > 0 {
				key := [2]uint16{label.FIDSerialHi, label.FIDSerialLo}
				if other, ok := seenSerial[key]; ok && other != e.Name {
					report.add(diskimage.KindInvariantViolation, vda, e.Name, "serial number collides with "+other)
				} else {
					seenSerial[key] = e.Name
				}
			}
		}
	}

	if fs.directory.file.Name != "SysDir." {
		report.add(diskimage.KindInvariantViolation, 1, "SysDir.", "directory leader page is not named SysDir.") // I3
	}
	if dd, err := fs.lookupFile("DiskDescriptor."); err != nil {
		return report, err
	} else if dd == nil {
		report.add(diskimage.KindInvariantViolation, -1, "DiskDescriptor.", "DiskDescriptor. file not found") // I3
	}

	freeCount := 0
	for vda := 0; vda < fs.geom.NVDAs(); vda++ {
		free, err := fs.descriptor.IsPageFree(vda)
		if err != nil {
			return report, err
		}
		if free {
			freeCount++
			if inUse[vda] {
				report.add(diskimage.KindInvariantViolation, vda, "", "page reachable from a file but marked free") // I2
			}
			acc := diskimage.NewSectorAccessor(fs.back, fs.geom, vda)
			label, err := acc.GetLabel()
			if err != nil {
				return report, err
			}
			if label.FID() != diskimage.FreeFID {
				report.add(diskimage.KindInvariantViolation, vda, "", "free page does not carry the sentinel FID") // I1
			}
		} else if !inUse[vda] {
			// In use per the bitmap but not reached by any directory entry
			// or by the directory/descriptor files themselves. vda 0, the
			// boot record, is the one legitimate exception.
			if vda != 0 {
				report.add(diskimage.KindInvariantViolation, vda, "", "page marked in use but not reachable from any file")
			}
		}
	}

	storedFree, err := fs.descriptor.acc.GetWord(diskimage.KDHfreePages)
	if err != nil {
		return report, err
	}
	if int(storedFree) != freeCount {
		report.add(diskimage.KindInvariantViolation, -1, "DiskDescriptor.", fmt.Sprintf("freePages=%d does not match bitmap count=%d", storedFree, freeCount)) // I4
	}

	return report, nil
}
