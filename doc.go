// Package altofs provides read/write access to a vintage workstation's
// on-disk file system stored as a raw disk image file on a modern host.
//
// It interprets the sector-level layout of two physical disk families (a
// small cartridge-disk family and a larger pack-disk family, see package
// internal/diskimage), reconstructs the logical file system on top of
// them — directory, free-space map, files — and supports enumerating,
// reading, creating and deleting files.
//
// Open a file system with Open, operate on it through FileSystem, and
// release its backing image with Close.
package altofs
