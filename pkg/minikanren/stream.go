package minikanren

// Stream is a pull-based producer of successive extended contexts (spec.md
// §4.7). Unlike the teacher's channel-and-goroutine Stream, a Stream here
// is an ordinary iterator object: Next is called synchronously by whoever
// is consuming it (And's inner loop, Or's round-robin, Solver.Next), which
// keeps the whole engine single-threaded per spec.md's Non-goals.
type Stream interface {
	// Next returns the next solution context and true, or the Failed
	// sentinel and false once exhausted. Calling Next after it has
	// returned false is a programming error; streams do not need to
	// tolerate it.
	Next() (Context, bool)
}

// StreamFunc adapts a plain closure to the Stream interface, mirroring the
// teacher's habit of exposing funcs as the default implementation of a
// single-method interface (core.go's StreamFunc-shaped helpers).
type StreamFunc func() (Context, bool)

func (f StreamFunc) Next() (Context, bool) { return f() }

// emptyStream is the Stream with no solutions.
var emptyStream Stream = StreamFunc(func() (Context, bool) { return Failed, false })

// singleStream yields ctx exactly once.
func singleStream(ctx Context) Stream {
	done := false
	return StreamFunc(func() (Context, bool) {
		if done {
			return Failed, false
		}
		done = true
		return ctx, true
	})
}

// sliceStream yields each ctx in ctxs in order.
func sliceStream(ctxs []Context) Stream {
	i := 0
	return StreamFunc(func() (Context, bool) {
		if i >= len(ctxs) {
			return Failed, false
		}
		c := ctxs[i]
		i++
		return c, true
	})
}
