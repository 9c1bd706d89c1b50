package pdf

import "fmt"

// DecodeError is returned when an image is missing, unreadable or not in a
// supported raster format.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// WriteError is returned when an intermediate or final file cannot be
// created or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ListError is returned when the input directory cannot be read.
type ListError struct {
	Dir string
	Err error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Dir, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// MergeError is the only error MergeFolder returns. Op names the step that
// failed: "options", "list", "convert", "append" or "write".
type MergeError struct {
	Op   string
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("merge: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("merge: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// OptionsError reports an invalid layout option.
type OptionsError struct {
	Field  string
	Reason string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
