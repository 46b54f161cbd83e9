package diskimage

import "encoding/binary"

// Accessor is the uniform indexed word/byte view over either a single
// sector (addressed by VDA, with negative indices reaching into its label
// and header) or a file (addressed by a word index into its concatenated
// data pages, with negative indices reaching into the leader page). Both
// variants share one byte-swap point: raw sector bytes are little-endian
// relative to the logical word value.
type Accessor struct {
	back Backing
	geom Geometry
	vda  int   // sector-backed when vdas == nil
	vdas []int // file-backed when non-nil; vdas[0] is the leader
}

// NewSectorAccessor builds an Accessor over a single sector.
func NewSectorAccessor(back Backing, geom Geometry, vda int) *Accessor {
	return &Accessor{back: back, geom: geom, vda: vda}
}

// NewFileAccessor builds an Accessor over a file's page list. idx 0
// addresses the first data word of page 1 (the leader is skipped for
// idx >= 0); idx == -DataWords addresses the first word of the leader.
func NewFileAccessor(back Backing, geom Geometry, vdas []int) *Accessor {
	return &Accessor{back: back, geom: geom, vda: -1, vdas: vdas}
}

func (a *Accessor) resolve(idx int) (vda, wordIdx int, err error) {
	if a.vdas == nil {
		return a.vda, idx, nil
	}
	page, within := floorDivMod(idx, a.geom.DataWords)
	page++ // skip the leader page
	if page < 0 || page >= len(a.vdas) {
		return 0, 0, NewError(KindBadAddress, "file word index out of range").WithField("idx")
	}
	return a.vdas[page], within, nil
}

// GetWord reads one word at idx.
func (a *Accessor) GetWord(idx int) (uint16, error) {
	vda, wordIdx, err := a.resolve(idx)
	if err != nil {
		return 0, err
	}
	buf, err := a.back.Get(vda, false)
	if err != nil {
		return 0, err
	}
	off := (wordIdx + a.geom.IndexOffset()) * 2
	if off < 0 || off+2 > len(buf) {
		return 0, NewError(KindBadAddress, "word offset out of range").WithVDA(vda).WithField("idx")
	}
	return binary.LittleEndian.Uint16(buf[off : off+2]), nil
}

// SetWord writes one word at idx.
func (a *Accessor) SetWord(idx int, w uint16) error {
	vda, wordIdx, err := a.resolve(idx)
	if err != nil {
		return err
	}
	buf, err := a.back.Get(vda, true)
	if err != nil {
		return err
	}
	off := (wordIdx + a.geom.IndexOffset()) * 2
	if off < 0 || off+2 > len(buf) {
		return NewError(KindBadAddress, "word offset out of range").WithVDA(vda).WithField("idx")
	}
	binary.LittleEndian.PutUint16(buf[off:off+2], w)
	return nil
}

// GetByte reads the byte at idx: word = idx/2, the left (high) byte when
// idx is even, the right (low) byte when idx is odd.
func (a *Accessor) GetByte(idx int) (byte, error) {
	wordIdx, rem := floorDivMod(idx, 2)
	w, err := a.GetWord(wordIdx)
	if err != nil {
		return 0, err
	}
	if rem == 0 {
		return byte(w >> 8), nil
	}
	return byte(w), nil
}

// SetByte writes the byte at idx, read-modify-write on the containing word.
func (a *Accessor) SetByte(idx int, b byte) error {
	wordIdx, rem := floorDivMod(idx, 2)
	w, err := a.GetWord(wordIdx)
	if err != nil {
		return err
	}
	if rem == 0 {
		w = (w & 0x00FF) | (uint16(b) << 8)
	} else {
		w = (w & 0xFF00) | uint16(b)
	}
	return a.SetWord(wordIdx, w)
}

// Label is the decoded per-sector metadata: linkage and file identity.
type Label struct {
	Next        DA
	Previous    DA
	NumChars    uint16
	PageNumber  uint16
	FIDVersion  uint16
	FIDSerialHi uint16
	FIDSerialLo uint16
}

// FreeFID is the sentinel file identity that marks a page as free.
var FreeFID = [3]uint16{0xFFFF, 0xFFFF, 0xFFFF}

// FID returns the label's file identity triple (version, serial_hi, serial_lo).
func (l Label) FID() [3]uint16 { return [3]uint16{l.FIDVersion, l.FIDSerialHi, l.FIDSerialLo} }

// GetLabel reads the label of the sector this Accessor addresses. It is
// only meaningful for sector-backed accessors.
func (a *Accessor) GetLabel() (Label, error) {
	lo := a.geom.Labels()
	var l Label
	var err error

	if l.Next, err = a.getDA(lo.Next, lo.NextLen); err != nil {
		return Label{}, err
	}
	if l.Previous, err = a.getDA(lo.Previous, lo.NextLen); err != nil {
		return Label{}, err
	}
	if l.NumChars, err = a.GetWord(lo.NumChars); err != nil {
		return Label{}, err
	}
	if l.PageNumber, err = a.GetWord(lo.PageNumber); err != nil {
		return Label{}, err
	}
	if l.FIDVersion, err = a.GetWord(lo.FIDVersion); err != nil {
		return Label{}, err
	}
	if l.FIDSerialHi, err = a.GetWord(lo.FIDSerial); err != nil {
		return Label{}, err
	}
	if l.FIDSerialLo, err = a.GetWord(lo.FIDSerial + 1); err != nil {
		return Label{}, err
	}
	return l, nil
}

// SetLabel writes every field of l to the sector this Accessor addresses.
func (a *Accessor) SetLabel(l Label) error {
	lo := a.geom.Labels()
	if err := a.setDA(lo.Next, lo.NextLen, l.Next); err != nil {
		return err
	}
	if err := a.setDA(lo.Previous, lo.NextLen, l.Previous); err != nil {
		return err
	}
	if err := a.SetWord(lo.NumChars, l.NumChars); err != nil {
		return err
	}
	if err := a.SetWord(lo.PageNumber, l.PageNumber); err != nil {
		return err
	}
	if err := a.SetWord(lo.FIDVersion, l.FIDVersion); err != nil {
		return err
	}
	if err := a.SetWord(lo.FIDSerial, l.FIDSerialHi); err != nil {
		return err
	}
	return a.SetWord(lo.FIDSerial+1, l.FIDSerialLo)
}

func (a *Accessor) getDA(idx, words int) (DA, error) {
	w0, err := a.GetWord(idx)
	if err != nil {
		return DA{}, err
	}
	if words == 1 {
		return DA{Word0: w0}, nil
	}
	w1, err := a.GetWord(idx + 1)
	if err != nil {
		return DA{}, err
	}
	return DA{Word0: w0, Word1: w1}, nil
}

func (a *Accessor) setDA(idx, words int, da DA) error {
	if err := a.SetWord(idx, da.Word0); err != nil {
		return err
	}
	if words == 2 {
		return a.SetWord(idx+1, da.Word1)
	}
	return nil
}

// ReadString reads a BCPL-style length-prefixed string whose field starts
// at word base: the first byte (high byte of word base) is the length,
// characters are packed two per word thereafter.
func (a *Accessor) ReadString(base int) (string, error) {
	w0, err := a.GetWord(base)
	if err != nil {
		return "", err
	}
	n := int(w0 >> 8)
	buf := make([]byte, n)
	for ci := 0; ci < n; ci++ {
		w, err := a.GetWord(base + (ci+1)/2)
		if err != nil {
			return "", err
		}
		if ci%2 == 0 {
			buf[ci] = byte(w)
		} else {
			buf[ci] = byte(w >> 8)
		}
	}
	return string(buf), nil
}

// WriteString writes s as a BCPL-style length-prefixed string at base.
func (a *Accessor) WriteString(base int, s string) error {
	n := len(s)
	var w uint16 = uint16(n) << 8
	if n == 0 {
		return a.SetWord(base, w)
	}
	for ci := 0; ci < n; ci++ {
		ch := uint16(s[ci])
		if ci%2 == 0 {
			w += ch
		} else {
			w = ch << 8
		}
		if err := a.SetWord(base+(ci+1)/2, w); err != nil {
			return err
		}
	}
	return nil
}
