// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Public API.

type (
	Router = gin.Engine
	Server interface {
		// ListenAndServe starts everything and blocks indefinitely.
		ListenAndServe(ctx context.Context, cancel context.CancelFunc)
	}
	// State is the actual custom behaviour that has to be implemented by users of this package to customize their http server`s lifecycle.
	State interface {
		Init(ctx context.Context, cancel context.CancelFunc)
		Close(ctx context.Context) error
		RegisterRoutes(r *Router)
		CheckHealth(ctx context.Context) error
	}
	Request[REQ any, RESP any] struct {
		Data     *REQ          `json:"data,omitempty"`
		ginCtx   *gin.Context  //nolint:structcheck // Wrong.
		shape    *requestShape //nolint:structcheck // Wrong.
		ID       string        `json:"id,omitempty"`
		ClientIP net.IP        `json:"clientIp,omitempty"`
	}
	Response[RESP any] struct {
		Data    *RESP
		Headers map[string]string
		Code    int
	}
	// ErrorResponse is the struct that is eventually serialized as a negative response back to the user.
	ErrorResponse struct {
		error `json:"-"`
		Data  map[string]any `json:"data,omitempty"`
		Error string         `json:"error"`
		Code  string         `json:"code,omitempty"`
	}
	Config struct {
		HTTPServer struct {
			CertPath string `yaml:"certPath" mapstructure:"certPath"` //nolint:tagliatelle // Nope.
			KeyPath  string `yaml:"keyPath" mapstructure:"keyPath"`   //nolint:tagliatelle // Nope.
			Port     uint16 `yaml:"port" mapstructure:"port"`
		} `yaml:"httpServer" mapstructure:"httpServer"` //nolint:tagliatelle // Nope.
		DefaultEndpointTimeout time.Duration `yaml:"defaultEndpointTimeout" mapstructure:"defaultEndpointTimeout"` //nolint:tagliatelle // Nope.
	}
)

// Private API.

const (
	json requestBinding = iota
	uri
	query
	header

	defaultEndpointTimeout = 30 * time.Second

	requestIDHeader = "X-Request-Id"
)

var (
	//nolint:gochecknoglobals // Because its loaded once, at runtime.
	development bool
	//nolint:gochecknoglobals // Because its loaded once, at runtime.
	cfg Config
	//nolint:gochecknoglobals // Request types are fixed at compile time, so this only ever grows to their number.
	requestShapes sync.Map
)

type (
	healthCheck struct{}
	requestBinding uint8
	// | requestShape is what the struct tags of a request type ask for: where to bind it from and which fields must be set.
	requestShape struct {
		bindings       []requestBinding
		requiredFields []string
	}
	// | srv is the internal representation of everything needed to bootstrap the http server.
	srv struct {
		State
		server             *http.Server
		router             *Router
		quit               chan<- os.Signal
		applicationYAMLKey string
	}
)
