package altofs

import "log"

// OpenOptions controls how Open builds a FileSystem around an image.
type OpenOptions struct {
	// ReadOnly, when set, skips all writeback on Close. It does not
	// prevent in-memory mutation (Create/Delete still run), only persists
	// nothing.
	ReadOnly bool

	// CarrySerial decides how lastSerialNumber behaves once the disk
	// descriptor's running counter would overflow a single word. The
	// original implementation does not define this case; it never
	// materializes on a real device because the counter only advances on
	// file creation. Defaults to false: the low word wraps without
	// touching the high word, matching plain 16-bit arithmetic elsewhere
	// in the format. Set true to carry into the high word instead.
	CarrySerial bool

	// Logger receives InvariantViolation warnings encountered while
	// walking file chains or directories. Defaults to log.Default().
	Logger *log.Logger
}
