package try

// Fataler is something which can stop a test (or a program) with Fatal.
//
// *testing.T and *log.Logger satisfy this.
type Fataler interface {
	Fatal(...any)
}

// Result is a pair of a value and an error.
//
// When Err is nil, the Result is "ok" and Value is valid.
type Result[T any] struct {
	Value T
	Err   error
}

// To wraps the return values of a function which returns (T, error).
//
//	f := try.To(os.Open(name)).OrFatal(t)
func To[T any](v T, err error) Result[T] {
	if err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Value: v}
}

func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}

func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// OrFatal returns the value if ok. Otherwise, it calls ftl.Fatal(err).
//
// If ftl has Helper() (like *testing.T), it is called before Fatal.
func (r Result[T]) OrFatal(ftl Fataler) T {
	if r.Err == nil {
		return r.Value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(r.Err)
	return *new(T)
}

func (r Result[T]) OrDefault(d T) T {
	if r.Err != nil {
		return d
	}
	return r.Value
}

// Map converts the value of an ok Result. Errors pass through.
func Map[T, R any](r Result[T], f func(T) (R, error)) Result[R] {
	if r.Err != nil {
		return Result[R]{Err: r.Err}
	}
	return To(f(r.Value))
}
