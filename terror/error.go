// SPDX-License-Identifier: ice License 1.0

package terror

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

func New(err error, data map[string]any) *Err {
	return &Err{error: err, Data: data}
}

func As(err error) *Err {
	tErr := new(Err)
	if ok := errors.As(err, tErr); ok {
		return tErr
	}

	return nil
}

// Value returns the data stored under key by the first *Err in err's chain.
func Value(err error, key string) (any, bool) {
	tErr := As(err)
	if tErr == nil || tErr.Data == nil {
		return nil, false
	}
	val, found := tErr.Data[key]

	return val, found
}

func (e Err) Error() string { //nolint:gocritic // Err has to satisfy error by value.
	if len(e.Data) == 0 {
		return e.error.Error()
	}
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%v=%v", k, e.Data[k]))
	}

	return fmt.Sprintf("%v [%v]", e.error.Error(), strings.Join(pairs, " "))
}

func (e *Err) Is(er error) bool {
	return errors.Is(er, e.error)
}

func (e *Err) Unwrap() error {
	return e.error
}

func (e *Err) As(err any) bool {
	o, ok := err.(*Err)
	if ok {
		*o = *e
	}

	return ok
}
