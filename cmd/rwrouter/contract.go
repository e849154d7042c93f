// SPDX-License-Identifier: ice License 1.0

package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ice-blockchain/rwrouter/connectors/router"
)

// Public API.

type (
	TargetHealthArg struct {
		TargetID string `uri:"targetId" required:"true"`
	}
	HealthReportArg struct{}
)

// Private API.

const (
	applicationYAMLKey = "self"
)

type (
	// | service implements server.State and is responsible for managing the state and lifecycle of the package.
	service struct {
		router   *router.Router
		registry *prometheus.Registry
	}
)
