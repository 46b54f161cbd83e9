package diskimage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Backing supplies mutable sector buffers by VDA and persists them on
// Close. Both the small-family (full in-memory slurp) and large-family
// (single-sector cache) strategies implement this contract.
//
// Get returns the full raw sector buffer, bookkeeping word included, for
// vda. The caller must not retain the returned slice across another call
// to Get on the same Backing — for the large family it is the single
// resident buffer, reused on the next miss.
type Backing interface {
	Geometry() Geometry
	Get(vda int, writable bool) ([]byte, error)
	AttachSecondDrive() error
	Close() error
}

// Open selects a family from the image's extension and size and returns the
// matching Backing.
func Open(path string) (Backing, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "diskimage: stat image")
	}
	if fi.IsDir() {
		return nil, NewError(KindUnknownGeometry, "path is a directory").WithName(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	size := fi.Size()

	switch ext {
	case ".dsk":
		for _, cfg := range []struct{ disks, tracks int }{{1, 203}, {2, 203}, {1, 406}, {2, 406}} {
			g := smallGeometry(cfg.tracks, cfg.disks)
			if int64(g.NVDAs())*int64(g.SectorBytes()) == size {
				return newSmallBacking(path, g)
			}
		}
		return nil, NewError(KindUnknownGeometry, fmt.Sprintf("size %d does not match any small-family layout", size)).WithName(path)
	case ".dsk80":
		g := largeGeometry()
		if int64(g.NVDAs())*int64(g.SectorBytes()) != size {
			return nil, NewError(KindUnknownGeometry, fmt.Sprintf("size %d does not match the large-family layout", size)).WithName(path)
		}
		return newLargeBacking(path, g)
	default:
		return nil, NewError(KindUnknownGeometry, "unrecognized extension "+ext).WithName(path)
	}
}
