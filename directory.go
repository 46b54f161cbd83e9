package altofs

import (
	"strings"

	"altofs/internal/diskimage"
)

const (
	dirEntryFree = 0
	dirEntryFile = 1
)

// fpWords is the width, in words, of the file pointer embedded in each
// occupied directory entry: [serialHi, serialLo, version, unused, leaderVDA].
const fpWords = 5

// DirEntry is one occupied slot of the directory, as returned by List and
// Lookup.
type DirEntry struct {
	Name      string
	LeaderVDA int
	FP        [fpWords]uint16 // FP[3] is conventionally zero
}

// Directory is the file system's flat directory, SysDir., whose leader page
// is always VDA 1. Entries are variable-length records packed back to back;
// a freed entry is left in place with its type flipped to free and, where
// possible, merged with an immediately following free entry.
type Directory struct {
	fs   *FileSystem
	file *File
	acc  *diskimage.Accessor
}

func (fs *FileSystem) openDirectory() (*Directory, error) {
	f, err := fs.openFileByLeader(1)
	if err != nil {
		return nil, err
	}
	if f.Name != "SysDir." {
		fs.warn(diskimage.KindInvariantViolation, 1, f.Name, "leader page 1 is not named SysDir.")
	}
	return &Directory{fs: fs, file: f, acc: f.Accessor()}, nil
}

func (d *Directory) lengthWords() int { return d.file.Length / 2 }

// entryLength returns the packed length of the entry starting at word i, or
// -1 once i reaches the end of the directory.
func (d *Directory) entryLength(i int) (int, error) {
	if i >= d.lengthWords() {
		return -1, nil
	}
	h, err := d.acc.GetWord(i)
	if err != nil {
		return 0, err
	}
	return int(h & 0o1777), nil
}

func (d *Directory) entryType(i int) (int, error) {
	h, err := d.acc.GetWord(i)
	if err != nil {
		return 0, err
	}
	return int(h >> 10), nil
}

func (d *Directory) entrySet(i, typ, length int) error {
	return d.acc.SetWord(i, uint16(typ<<10)|uint16(length))
}

func (d *Directory) entryName(i int) (string, error) {
	return d.acc.ReadString(i + 1 + fpWords)
}

// search returns the word index of nam's entry, or -1 if not present.
// Matching is case-insensitive, per the original implementation.
func (d *Directory) search(nam string) (int, error) {
	idx := 0
	for {
		length, err := d.entryLength(idx)
		if err != nil {
			return 0, err
		}
		if length <= 0 {
			return -1, nil
		}
		typ, err := d.entryType(idx)
		if err != nil {
			return 0, err
		}
		if typ == dirEntryFile {
			name, err := d.entryName(idx)
			if err != nil {
				return 0, err
			}
			if strings.EqualFold(name, nam) {
				return idx, nil
			}
		}
		idx += length
	}
}

func (d *Directory) extract(idx int) (*DirEntry, error) {
	typ, err := d.entryType(idx)
	if err != nil {
		return nil, err
	}
	if typ == dirEntryFree {
		return nil, nil
	}
	leaderVDA, err := d.acc.GetWord(idx + fpWords)
	if err != nil {
		return nil, err
	}
	name, err := d.entryName(idx)
	if err != nil {
		return nil, err
	}
	e := &DirEntry{Name: name, LeaderVDA: int(leaderVDA)}
	for j := 0; j < fpWords; j++ {
		w, err := d.acc.GetWord(idx + 1 + j)
		if err != nil {
			return nil, err
		}
		e.FP[j] = w
	}
	e.FP[3] = 0
	return e, nil
}

// lookup returns nam's entry, or nil if nam is not present.
func (d *Directory) lookup(nam string) (*DirEntry, error) {
	idx, err := d.search(nam)
	if err != nil {
		return nil, err
	}
	if idx == -1 {
		return nil, nil
	}
	return d.extract(idx)
}

// List returns every occupied directory entry, in on-disk order.
func (d *Directory) List() ([]DirEntry, error) {
	var out []DirEntry
	idx := 0
	for {
		length, err := d.entryLength(idx)
		if err != nil {
			return nil, err
		}
		if length <= 0 {
			return out, nil
		}
		e, err := d.extract(idx)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
		idx += length
	}
}

// remove marks nam's entry free, merging it with an immediately following
// free entry when the combined length stays under the 1000-word sanity
// bound the original format uses for entry lengths (10 bits).
func (d *Directory) remove(nam string) (bool, error) {
	idx, err := d.search(nam)
	if err != nil {
		return false, err
	}
	if idx == -1 {
		return false, nil
	}
	thisLen, err := d.entryLength(idx)
	if err != nil {
		return false, err
	}
	nextIdx := idx + thisLen
	nextLen, err := d.entryLength(nextIdx)
	if err != nil {
		return false, err
	}
	if nextLen != -1 {
		nextTyp, err := d.entryType(nextIdx)
		if err != nil {
			return false, err
		}
		if nextTyp == dirEntryFree && thisLen+nextLen < 1000 {
			thisLen += nextLen
		}
	}
	if err := d.entrySet(idx, dirEntryFree, thisLen); err != nil {
		return false, err
	}
	return true, nil
}

// add inserts nam into the first free entry large enough to hold it,
// splitting the remainder into a new free entry when enough room is left
// over. It returns DirectoryFull if no entry fits.
func (d *Directory) add(nam string, fp [fpWords]uint16) error {
	needed := 1 + fpWords + (len(nam)+2)/2
	idx := 0
	for {
		oldLen, err := d.entryLength(idx)
		if err != nil {
			return err
		}
		if oldLen <= 0 {
			break
		}
		typ, err := d.entryType(idx)
		if err != nil {
			return err
		}
		if typ == dirEntryFree && oldLen >= needed {
			for i, w := range fp {
				if err := d.acc.SetWord(idx+1+i, w); err != nil {
					return err
				}
			}
			if err := d.acc.WriteString(idx+1+fpWords, nam); err != nil {
				return err
			}
			newLen := oldLen - needed
			if newLen < 10 {
				return d.entrySet(idx, dirEntryFile, oldLen)
			}
			if err := d.entrySet(idx, dirEntryFile, needed); err != nil {
				return err
			}
			return d.entrySet(idx+needed, dirEntryFree, newLen)
		}
		idx += oldLen
	}
	return diskimage.NewError(diskimage.KindDirectoryFull, "no free entry large enough for "+nam).WithName(nam)
}
