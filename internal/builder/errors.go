// internal/builder/errors.go
package builder

import "fmt"

// LoadError reports a source file that could not be read or parsed.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RenderError reports a page that could not be rendered or written. File
// is set when the body of the source file failed to render.
type RenderError struct {
	View string
	Slug string
	File string
	Err  error
}

func (e *RenderError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("failed to render body of %s: %v", e.File, e.Err)
	}
	if e.View == "" {
		return fmt.Sprintf("failed to write %s: %v", e.Slug, e.Err)
	}
	return fmt.Sprintf("failed to render %s with view %s: %v", e.Slug, e.View, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
