package altofs

import (
	"log"

	"altofs/internal/diskimage"
)

// FileSystem is an open instance of the file system backed by one disk
// image. It owns the image's Backing and the two special files built on
// top of it, the directory and the disk descriptor.
type FileSystem struct {
	back diskimage.Backing
	geom diskimage.Geometry
	opts OpenOptions

	directory  *Directory
	descriptor *DiskDescriptor
}

// Open opens the image at path, selecting its family automatically from
// extension and size, and indexes its directory and disk descriptor.
func Open(path string, opts OpenOptions) (*FileSystem, error) {
	back, err := diskimage.Open(path)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	fs := &FileSystem{back: back, geom: back.Geometry(), opts: opts}

	fs.directory, err = fs.openDirectory()
	if err != nil {
		back.Close()
		return nil, err
	}
	fs.descriptor, err = fs.openDiskDescriptor()
	if err != nil {
		back.Close()
		return nil, err
	}
	return fs, nil
}

// Close persists any in-memory changes and releases the backing image.
// For a FileSystem opened ReadOnly it returns at once: nothing is written
// and the backing image is not closed.
func (fs *FileSystem) Close() error {
	if fs.opts.ReadOnly {
		return nil
	}
	return fs.back.Close()
}

func (fs *FileSystem) warn(kind diskimage.ErrorKind, vda int, name, msg string) {
	e := diskimage.NewError(kind, msg).WithVDA(vda)
	if name != "" {
		e = e.WithName(name)
	}
	fs.opts.Logger.Print(e.Error())
}

func (fs *FileSystem) logf(format string, args ...any) {
	fs.opts.Logger.Printf(format, args...)
}

// Open looks up name and returns the File view of it, or ErrFileNotFound.
func (fs *FileSystem) Open(name string) (*File, error) {
	f, err := fs.lookupFile(name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, diskimage.NewError(diskimage.KindFileNotFound, "").WithName(normalizeName(name))
	}
	return f, nil
}

// List returns every entry in the directory.
func (fs *FileSystem) List() ([]DirEntry, error) {
	return fs.directory.List()
}

// Create allocates a new file named name holding dataLength bytes of as yet
// unwritten content (callers fill it in afterward via the returned File's
// Accessor) and adds it to the directory.
func (fs *FileSystem) Create(name string, dataLength int) (*File, error) {
	name = normalizeName(name)
	dataBlockWords := fs.geom.DataWords
	dataBlockBytes := dataBlockWords * 2
	numChars := dataLength + dataBlockBytes // includes the leader page's contribution

	nPages := (numChars + dataBlockBytes) / dataBlockBytes
	if nPages < 1 {
		nPages = 1
	}

	vdas := make([]int, nPages)
	for i := range vdas {
		vda, err := fs.descriptor.Allocate()
		if err != nil {
			// Roll back pages already allocated for this file.
			for _, v := range vdas[:i] {
				fs.descriptor.Free(v)
			}
			return nil, err
		}
		vdas[i] = vda
	}

	hi, lo, err := fs.descriptor.nextSerial()
	if err != nil {
		return nil, err
	}

	lastPageChars := numChars % dataBlockBytes
	for i, vda := range vdas {
		first := i == 0
		last := i == len(vdas)-1
		acc := diskimage.NewSectorAccessor(fs.back, fs.geom, vda)

		for j := 0; j < dataBlockWords; j++ {
			if err := acc.SetWord(j, 0); err != nil {
				return nil, err
			}
		}

		if first {
			if err := acc.WriteString(diskimage.LeaderName, name); err != nil {
				return nil, err
			}
			if err := acc.SetWord(diskimage.LeaderProperty, (26<<8)+210); err != nil {
				return nil, err
			}
			if err := acc.SetWord(diskimage.LeaderHintLastPageFA, uint16(vdas[len(vdas)-1])); err != nil {
				return nil, err
			}
			if err := acc.SetWord(diskimage.LeaderHintLastPageFA+1, uint16(len(vdas)-1)); err != nil {
				return nil, err
			}
			if err := acc.SetWord(diskimage.LeaderHintLastPageFA+2, uint16(lastPageChars)); err != nil {
				return nil, err
			}
		}

		zeroDA, err := fs.geom.VDAToDA(0)
		if err != nil {
			return nil, err
		}
		nextDA := zeroDA
		if !last {
			if nextDA, err = fs.geom.VDAToDA(vdas[i+1]); err != nil {
				return nil, err
			}
		}
		prevDA := zeroDA
		if !first {
			if prevDA, err = fs.geom.VDAToDA(vdas[i-1]); err != nil {
				return nil, err
			}
		}

		label := diskimage.Label{
			Next:        nextDA,
			Previous:    prevDA,
			PageNumber:  uint16(i),
			FIDVersion:  1,
			FIDSerialHi: hi,
			FIDSerialLo: lo,
		}
		if last {
			label.NumChars = uint16(numChars - (len(vdas)-1)*dataBlockBytes)
		} else {
			label.NumChars = uint16(dataBlockBytes)
		}
		if err := acc.SetLabel(label); err != nil {
			return nil, err
		}
	}

	fp := [fpWords]uint16{hi, lo, 1, 0, uint16(vdas[0])}
	if err := fs.directory.add(name, fp); err != nil {
		return nil, err
	}

	return fs.openFileByLeader(vdas[0])
}

// Delete removes name's file from the directory and frees all of its
// pages, scrubbing each page's file identity. It reports whether the file
// existed.
func (fs *FileSystem) Delete(name string) (bool, error) {
	name = normalizeName(name)
	f, err := fs.lookupFile(name)
	if err != nil {
		return false, err
	}
	if f == nil {
		return false, nil
	}

	for _, vda := range f.Pages {
		if err := fs.descriptor.Free(vda); err != nil {
			return false, err
		}
		acc := diskimage.NewSectorAccessor(fs.back, fs.geom, vda)
		scrubbed := diskimage.Label{
			FIDVersion:  0xFFFF,
			FIDSerialHi: 0xFFFF,
			FIDSerialLo: 0xFFFF,
		}
		if err := acc.SetLabel(scrubbed); err != nil {
			return false, err
		}
	}

	if _, err := fs.directory.remove(name); err != nil {
		return false, err
	}
	return true, nil
}
