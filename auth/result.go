package auth

// Result is the uniform outcome of every mutating facade operation:
// OK with Data on success, Err otherwise. Operations never panic and never
// leak transport errors in any other shape.
type Result struct {
	OK   bool
	Data map[string]any
	Err  error
}

func success(data map[string]any) Result {
	return Result{OK: true, Data: data}
}

func failure(err error) Result {
	return Result{Err: err}
}
