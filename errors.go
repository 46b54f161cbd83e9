package altofs

import "altofs/internal/diskimage"

// Sentinel errors for use with errors.Is. All of them, except
// InvariantViolation (which is only ever logged or collected into a
// CheckReport, never returned), abort the current operation.
var (
	ErrUnknownGeometry    = diskimage.NewError(diskimage.KindUnknownGeometry, "")
	ErrGeometryMismatch   = diskimage.NewError(diskimage.KindGeometryMismatch, "")
	ErrSecondDriveMissing = diskimage.NewError(diskimage.KindSecondDriveMissing, "")
	ErrBadAddress         = diskimage.NewError(diskimage.KindBadAddress, "")
	ErrOutOfSpace         = diskimage.NewError(diskimage.KindOutOfSpace, "")
	ErrDirectoryFull      = diskimage.NewError(diskimage.KindDirectoryFull, "")
	ErrFileNotFound       = diskimage.NewError(diskimage.KindFileNotFound, "")
)
