// SPDX-License-Identifier: ice License 1.0

package server

import (
	"net/http"
)

func UnprocessableEntity(err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusUnprocessableEntity, err, code, dataArg...)
}

func NotFound(err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusNotFound, err, code, dataArg...)
}

func ServiceUnavailable(err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusServiceUnavailable, err, code, dataArg...)
}

func Unexpected(err error) *Response[ErrorResponse] {
	return &Response[ErrorResponse]{
		Code: -1,
		Data: &ErrorResponse{
			error: err,
			Error: err.Error(),
		},
	}
}

func OK[RESP any](responses ...*RESP) *Response[RESP] {
	var resp *RESP
	if len(responses) == 1 {
		resp = responses[0]
	}

	return &Response[RESP]{Code: http.StatusOK, Data: resp}
}

func (e *ErrorResponse) InternalErr() error {
	return e.error
}

func errorResponse(status int, err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	var data map[string]any
	if len(dataArg) == 1 {
		data = dataArg[0]
	}

	return &Response[ErrorResponse]{
		Data: &ErrorResponse{
			error: err,
			Error: err.Error(),
			Code:  code,
			Data:  data,
		},
		Code: status,
	}
}
