// Package ingest builds forests from outside sources: JSON manifests and
// directories on a billy filesystem.
package ingest

import "time"

// Clock stamps imported nodes. Nil means time.Now.
type Clock func() time.Time

func (c Clock) now() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c
}
