package suricata

import "errors"

var (
	// ErrTemplate is matched by errors returned when the config template cannot be rendered.
	ErrTemplate = errors.New("suricata config template could not be rendered")
	// ErrIO is matched by errors returned when the rendered config cannot be written.
	ErrIO = errors.New("suricata config could not be written")
)

// TemplateError wraps a rendering failure.
type TemplateError struct {
	Err error
}

func (e *TemplateError) Error() string {
	return "render suricata config: " + e.Err.Error()
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTemplate.
func (e *TemplateError) Is(target error) bool {
	return target == ErrTemplate
}

// IOError wraps a failure to create or write the destination file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return "write suricata config " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
