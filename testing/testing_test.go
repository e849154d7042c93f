// SPDX-License-Identifier: ice License 1.0

package testing

import (
	"testing"
	stdlibtime "time"

	"github.com/stretchr/testify/assert"
)

type stamped struct {
	At   stdlibtime.Time `json:"at"`
	Name string          `json:"name"`
}

func TestMustUnmarshalHandlesStdlibUnmarshalers(t *testing.T) {
	t.Parallel()

	at := stdlibtime.Date(2026, 10, 19, 12, 30, 0, 0, stdlibtime.UTC)
	got := MustUnmarshal[stamped](t, MustMarshal(t, &stamped{At: at, Name: "write-main"}))
	assert.True(t, at.Equal(got.At))
	assert.Equal(t, "write-main", got.Name)
}

func TestAssertJSON(t *testing.T) {
	t.Parallel()

	AssertJSON(t, `{ "at": "2026-10-19T12:30:00Z", "name": "read-east" }`,
		&stamped{At: stdlibtime.Date(2026, 10, 19, 12, 30, 0, 0, stdlibtime.UTC), Name: "read-east"})
}
