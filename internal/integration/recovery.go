package integration

// SafeGo runs fn in a goroutine and reports a panic to onPanic instead of
// crashing the process.
func SafeGo(fn func(), onPanic func(recovered any)) {
	go func() {
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(r)
			}
		}()
		fn()
	}()
}
