package altofs

import (
	"strings"

	"altofs/internal/diskimage"
)

// File is an ordered, non-empty snapshot of a file's page chain: Pages[0]
// is the leader VDA, Pages[1:] are data pages in order. It is built fresh
// from the current sector contents each time it is opened; it does not
// observe later mutation of the underlying image.
type File struct {
	fs        *FileSystem
	LeaderVDA int
	Name      string
	Pages     []int
	Length    int // logical byte length, leader excluded
}

// normalizeName appends a trailing '.' if the caller's name lacks one; all
// Alto file names end in a dot.
func normalizeName(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// openFileByLeader walks the label chain starting at leaderVDA, accumulating
// numChars across pages and reading the leader's name along the way.
func (fs *FileSystem) openFileByLeader(leaderVDA int) (*File, error) {
	f := &File{fs: fs, LeaderVDA: leaderVDA, Pages: []int{leaderVDA}}

	vda := leaderVDA
	totalChars := 0
	for {
		acc := diskimage.NewSectorAccessor(fs.back, fs.geom, vda)
		label, err := acc.GetLabel()
		if err != nil {
			return nil, err
		}
		if vda == leaderVDA {
			name, err := acc.ReadString(diskimage.LeaderName)
			if err != nil {
				return nil, err
			}
			f.Name = name
		}
		totalChars += int(label.NumChars)

		if label.Next.IsZero() {
			break
		}
		if int(label.NumChars) != 2*fs.geom.DataWords {
			fs.warn(diskimage.KindInvariantViolation, vda, "", "non-terminal page has numChars != 2*dataWords")
		}
		nextVDA, err := fs.geom.DAToVDA(label.Next)
		if err != nil {
			return nil, err
		}
		f.Pages = append(f.Pages, nextVDA)
		vda = nextVDA
	}

	f.Length = totalChars - 2*fs.geom.DataWords
	return f, nil
}

// lookupFile resolves name via the directory and, if found, opens it. It
// returns (nil, nil) — not an error — when the name does not exist, since
// "missing" is an ordinary outcome for the lower-level lookup path; callers
// that require the file to exist translate that into ErrFileNotFound.
func (fs *FileSystem) lookupFile(name string) (*File, error) {
	name = normalizeName(name)
	entry, err := fs.directory.lookup(name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return fs.openFileByLeader(entry.LeaderVDA)
}

// Accessor returns a word/byte accessor over this file's data pages,
// excluding the leader (idx 0 is the first data word of page 1; idx
// -DataWords reaches the first word of the leader).
func (f *File) Accessor() *diskimage.Accessor {
	return diskimage.NewFileAccessor(f.fs.back, f.fs.geom, f.Pages)
}

// ReadAsString streams the file's logical byte content as text, translating
// CR to LF.
func (f *File) ReadAsString() (string, error) {
	acc := f.Accessor()
	var sb strings.Builder
	sb.Grow(f.Length)
	for i := 0; i < f.Length; i++ {
		b, err := acc.GetByte(i)
		if err != nil {
			return "", err
		}
		if b == 0x0D {
			b = 0x0A
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}
