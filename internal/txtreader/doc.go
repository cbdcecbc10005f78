// Package txtreader is the caller-facing API for reading large text files
// on a worker. Every method enqueues one action and returns its task; the
// result is delivered through the task's observers or Await.
//
//	reader, err := txtreader.Open(afero.NewOsFs(), registry, txtreader.DefaultOptions(), logger)
//	load := reader.LoadFile("big.log")
//	lines := reader.GetLines(0, 10)
//	got, err := txtreader.Await[[]string](ctx, lines)
//
// Line numbers are 0-based.
package txtreader
