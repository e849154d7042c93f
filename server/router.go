// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-reflect"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/log"
)

// RootHandler adapts handleRequest to gin: it binds and validates REQ, bounds the call with the default endpoint timeout
// and tags the exchange with a request id, echoed back in the X-Request-Id header.
func RootHandler[REQ, RESP any](handleRequest func(context.Context, *Request[REQ, RESP]) (*Response[RESP], *Response[ErrorResponse])) func(*gin.Context) {
	return func(ginCtx *gin.Context) {
		ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), cfg.DefaultEndpointTimeout)
		defer cancel()
		req := new(Request[REQ, RESP]).init(ginCtx)
		ginCtx.Header(requestIDHeader, req.ID)
		if err := req.processRequest(); err != nil {
			req.logFailure("endpoint processing failed", err)
			ginCtx.JSON(err.Code, err.Data)

			return
		}
		success, failure := handleRequest(ctx, req)
		if failure != nil {
			req.logFailure("endpoint failed", failure)
			ginCtx.JSON(req.processErrorResponse(ctx, failure))

			return
		}
		for k, v := range success.Headers {
			ginCtx.Header(k, v)
		}
		if success.Data != nil {
			ginCtx.JSON(success.Code, success.Data)
		} else {
			ginCtx.Status(success.Code)
		}
	}
}

func (req *Request[REQ, RESP]) init(ginCtx *gin.Context) *Request[REQ, RESP] {
	req.Data = new(REQ)
	req.ClientIP = net.ParseIP(ginCtx.ClientIP())
	req.ginCtx = ginCtx
	if req.ID = ginCtx.GetHeader(requestIDHeader); req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.shape = shapeOf(req.Data)

	return req
}

func (req *Request[REQ, RESP]) logFailure(msg string, failure *Response[ErrorResponse]) {
	log.Error(errors.Wrap(failure.Data.InternalErr(), msg),
		"request", fmt.Sprintf("%[1]T", req.Data), "requestId", req.ID, "route", req.ginCtx.FullPath(), "code", failure.Code)
}

func shapeOf(data any) *requestShape {
	typ := reflect.TypeOf(data).Elem()
	if shape, found := requestShapes.Load(typ); found {
		return shape.(*requestShape) //nolint:forcetypeassert,errcheck // Only shapes are stored.
	}
	shape, _ := requestShapes.LoadOrStore(typ, parseShape(typ))

	return shape.(*requestShape) //nolint:forcetypeassert,errcheck // Only shapes are stored.
}

func parseShape(elem reflect.Type) *requestShape {
	if elem.Kind() != reflect.Struct {
		log.Panic("request data's have to be structs")
	}
	shape := &requestShape{requiredFields: make([]string, 0, elem.NumField())}
	seen := make(map[requestBinding]bool, 4) //nolint:mnd // They're 4 possible values.
	bind := func(b requestBinding) {
		if !seen[b] {
			seen[b] = true
			shape.bindings = append(shape.bindings, b)
		}
	}
	for i := range elem.NumField() {
		tag := elem.Field(i).Tag
		if tag.Get("required") == "true" {
			shape.requiredFields = append(shape.requiredFields, elem.Field(i).Name)
		}
		if jsonTag := tag.Get("json"); jsonTag != "" && jsonTag != "-" {
			bind(json)
		}
		if tag.Get("uri") != "" {
			bind(uri)
		}
		if tag.Get("header") != "" {
			bind(header)
		}
		if tag.Get("form") != "" {
			bind(query)
		}
	}

	return shape
}

func (req *Request[REQ, RESP]) processRequest() *Response[ErrorResponse] {
	var errs []error
	for _, b := range req.shape.bindings {
		switch b { //nolint:revive // .
		case json:
			errs = append(errs, req.ginCtx.ShouldBindJSON(req.Data))
		case uri:
			errs = append(errs, req.ginCtx.ShouldBindUri(req.Data))
		case query:
			errs = append(errs, req.ginCtx.ShouldBindQuery(req.Data))
		case header:
			errs = append(errs, req.ginCtx.ShouldBindHeader(req.Data))
		}
	}
	if err := multierror.Append(nil, errs...).ErrorOrNil(); err != nil {
		return UnprocessableEntity(errors.Wrapf(err, "binding failed"), "STRUCTURE_VALIDATION_FAILED")
	}

	return req.validate()
}

func (req *Request[REQ, RESP]) validate() *Response[ErrorResponse] {
	value := reflect.ValueOf(req.Data).Elem()
	var missing []string
	for _, field := range req.shape.requiredFields {
		if value.FieldByName(field).IsZero() {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return UnprocessableEntity(errors.Errorf("properties `%v` are required", strings.Join(missing, ",")), "MISSING_PROPERTIES")
}

// processErrorResponse hides internal errors: cancellations and timeouts get their own status, anything unexpected a 500.
func (req *Request[REQ, RESP]) processErrorResponse(ctx context.Context, failure *Response[ErrorResponse]) (int, *ErrorResponse) {
	err := failure.Data.InternalErr()
	if reqErr := req.ginCtx.Request.Context().Err(); reqErr != nil && errors.Is(err, reqErr) {
		return http.StatusServiceUnavailable, &ErrorResponse{Error: "service is shutting down"}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return http.StatusGatewayTimeout, &ErrorResponse{Error: "request timed out"}
	}
	if failure.Code <= 0 {
		return http.StatusInternalServerError, &ErrorResponse{Error: fmt.Sprintf("oops, something went wrong (request %v)", req.ID)}
	}

	return failure.Code, failure.Data
}
