// SPDX-License-Identifier: ice License 1.0

package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ice-blockchain/rwrouter/connectors/router"
	"github.com/ice-blockchain/rwrouter/log"
	"github.com/ice-blockchain/rwrouter/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.New(new(service), applicationYAMLKey).ListenAndServe(ctx, cancel)
}

func (s *service) Init(ctx context.Context, _ context.CancelFunc) {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.router = router.MustConnect(ctx, applicationYAMLKey, router.WithEventSink(router.NewPrometheusSink(s.registry), router.NewLogSink()))
}

func (s *service) Close(ctx context.Context) error {
	return errors.Wrap(s.router.Shutdown(ctx), "could not shutdown the router")
}

func (s *service) CheckHealth(ctx context.Context) error {
	log.Debug("checking health...", "package", "rwrouter")
	if report := s.router.HealthCheck(ctx); !report.WriteHealthy {
		var cause string
		for _, target := range report.Targets {
			if target.ID == s.router.Write().ID() {
				cause = target.Error
			}
		}

		return errors.Errorf("write target %v is unhealthy: %v", s.router.Write().ID(), cause)
	}

	return nil
}

func (s *service) RegisterRoutes(r *server.Router) {
	r.Group("v1").
		GET("health", server.RootHandler(s.GetHealthReport)).
		GET("health/:targetId", server.RootHandler(s.GetTargetHealth))
	r.GET("metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// GetHealthReport probes every target and returns the result. Unhealthy targets are part of the report;
// it only fails when the request is cancelled mid-probe.
func (s *service) GetHealthReport(
	ctx context.Context,
	_ *server.Request[HealthReportArg, router.HealthReport],
) (*server.Response[router.HealthReport], *server.Response[server.ErrorResponse]) {
	report := s.router.HealthCheck(ctx)
	if ctx.Err() != nil {
		return nil, server.Unexpected(errors.Wrap(ctx.Err(), "health check interrupted"))
	}

	return server.OK(report), nil
}

func (s *service) GetTargetHealth(
	ctx context.Context,
	req *server.Request[TargetHealthArg, router.TargetHealth],
) (*server.Response[router.TargetHealth], *server.Response[server.ErrorResponse]) {
	report := s.router.HealthCheck(ctx)
	if ctx.Err() != nil {
		return nil, server.Unexpected(errors.Wrapf(ctx.Err(), "health check of %v interrupted", req.Data.TargetID))
	}
	for _, target := range report.Targets {
		if target.ID == req.Data.TargetID {
			return server.OK(target), nil
		}
	}

	return nil, server.NotFound(errors.Errorf("target %v is not configured", req.Data.TargetID), "TARGET_NOT_FOUND")
}
