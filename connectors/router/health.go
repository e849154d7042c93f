// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"fmt"
	"sync"
	stdlibtime "time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/log"
)

// HealthCheck probes every target independently and concurrently. A failing or panicking probe only marks its own
// target unhealthy. The results are stored on the targets but routing ignores them unless SkipUnhealthyReplicas is set.
func (r *Router) HealthCheck(ctx context.Context) *HealthReport {
	targets := r.targets()
	results := make([]*TargetHealth, len(targets))
	wg := new(sync.WaitGroup)
	wg.Add(len(targets))
	for ix, target := range targets {
		go func() {
			defer wg.Done()
			results[ix] = r.probe(ctx, target)
		}()
	}
	wg.Wait()
	report := &HealthReport{CheckedAt: stdlibtime.Now().UTC(), Targets: results, TotalReplicas: len(r.reads)}
	for _, res := range results {
		switch {
		case res.Role == RoleWrite.String():
			report.WriteHealthy = res.Healthy
		case res.Healthy:
			report.HealthyReplicas++
		}
	}

	return report
}

// ByID flattens the report to target id -> healthy.
func (h *HealthReport) ByID() map[string]bool {
	res := make(map[string]bool, len(h.Targets))
	for _, target := range h.Targets {
		res[target.ID] = target.Healthy
	}

	return res
}

func (r *Router) probe(ctx context.Context, target *Target) (result *TargetHealth) {
	start := stdlibtime.Now()
	result = &TargetHealth{ID: target.id, Role: target.role.String()}
	var probeErr error
	defer func() {
		if rec := recover(); rec != nil {
			probeErr = errors.Errorf("health probe panicked: %v", rec)
		}
		result.Latency = stdlibtime.Since(start)
		result.Healthy = probeErr == nil
		if probeErr != nil {
			result.Error = probeErr.Error()
		}
		target.healthy.Store(result.Healthy)
		r.observe(KindHealth, target, result.Latency, probeErr, "")
	}()
	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.HealthCheckTimeout)
	defer cancel()
	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = ping(probeCtx, target.handle)

		return lastErr
	}, backoff.WithContext(newProbeBackOff(r.cfg.HealthCheckTimeout), probeCtx))
	if err != nil && lastErr != nil && probeCtx.Err() != nil {
		err = lastErr
	}
	probeErr = err

	return result
}

func ping(ctx context.Context, conn Handle) error {
	var res int
	if err := conn.QueryRow(ctx, healthProbeSQL).Scan(&res); err != nil {
		return errors.Wrap(err, "health probe failed")
	}
	if res != 1 {
		return backoff.Permanent(errors.Errorf("health probe returned %v instead of 1", res))
	}

	return nil
}

func newProbeBackOff(budget stdlibtime.Duration) backoff.BackOff {
	const attemptsPerBudget = 4
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = budget / (attemptsPerBudget * attemptsPerBudget)
	b.MaxInterval = budget / attemptsPerBudget
	b.MaxElapsedTime = budget
	b.Reset()

	return b
}

// startHealthChecker outlives ctx. Only Shutdown stops it.
func (r *Router) startHealthChecker(ctx context.Context) {
	hcCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.stopHealth = cancel
	r.healthWG.Add(1)
	go func() {
		defer r.healthWG.Done()
		ticker := stdlibtime.NewTicker(r.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			logHealthReport(r.HealthCheck(hcCtx))
			select {
			case <-hcCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func logHealthReport(report *HealthReport) {
	for _, target := range report.Targets {
		if target.Healthy {
			continue
		}
		if target.Role == RoleWrite.String() {
			log.Error(errors.Errorf("write target %v is unhealthy: %v", target.ID, target.Error))
		} else {
			log.Warn(fmt.Sprintf("read target %v is unhealthy", target.ID), "error", target.Error)
		}
	}
	log.Debug("health check finished", "totalReplicas", report.TotalReplicas, "healthyReplicas", report.HealthyReplicas,
		"writeHealthy", report.WriteHealthy)
}
