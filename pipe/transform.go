package pipe

// Transform is one stage of a pipe. It receives chunks in order and may emit
// zero or more chunks for each; emit blocks while the next stage is full.
type Transform interface {
	Transform(chunk []byte, emit func([]byte) error) error
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(chunk []byte, emit func([]byte) error) error

func (f TransformFunc) Transform(chunk []byte, emit func([]byte) error) error {
	return f(chunk, emit)
}
