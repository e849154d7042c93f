// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/log"
)

// Shutdown stops the background health checker and closes every pool concurrently.
// It is best-effort: every close is attempted, failures are logged and returned together, nothing panics.
// Only the first call does any work.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.closed.Store(true)
		if r.stopHealth != nil {
			r.stopHealth()
			r.healthWG.Wait()
		}
		r.shutdownErr = r.closeTargets(ctx)
		if r.shutdownErr != nil {
			log.Error(errors.Wrap(r.shutdownErr, "router shutdown finished with errors"))
		} else {
			log.Info("router shutdown succeeded")
		}
	})

	return r.shutdownErr
}

func (r *Router) closeTargets(ctx context.Context) error {
	targets := make([]*Target, 0, len(r.reads)+1)
	for _, target := range r.targets() {
		if target != nil {
			targets = append(targets, target)
		}
	}
	wg := new(sync.WaitGroup)
	wg.Add(len(targets))
	errs := make(chan error, len(targets))
	for _, target := range targets {
		go func() {
			defer wg.Done()
			errs <- target.close(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	errs2 := make([]error, 0, len(targets))
	for err := range errs {
		if err != nil {
			errs2 = append(errs2, err)
		}
	}

	return multierror.Append(nil, errs2...).ErrorOrNil() //nolint:wrapcheck // Not needed.
}

// close waits for the pool to close, which pgxpool does only once every acquired connection is released,
// but never longer than ctx allows.
func (t *Target) close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- errors.Errorf("closing %v target %v panicked: %v", t.role, t.id, rec)
			}
		}()
		t.handle.Close()
		done <- nil
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "closing %v target %v did not finish in time", t.role, t.id)
	}
}
