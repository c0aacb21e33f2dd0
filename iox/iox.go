// Package iox provides cleanup helpers for sources, sinks and response
// bodies.
package iox

import (
	"errors"
	"io"
)

// DiscardClose closes c and discards the error, for deferred closes whose
// failure cannot change the outcome:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DiscardErr calls fn and discards the returned error:
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// CloseAll closes every closer in order, even after a failure, and joins
// the errors. Nil closers are skipped.
func CloseAll[C io.Closer](closers ...C) error {
	var errs []error
	for _, c := range closers {
		if any(c) == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
