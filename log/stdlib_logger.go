// SPDX-License-Identifier: ice License 1.0
//go:build stdlog

package log

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/config"
)

const (
	debug = "debug"
	info  = "info"
	warn  = "warn"
)

// .
var (
	//nolint:gochecknoglobals // Immutable singleton.
	appCfg cfg
)

//nolint:gochecknoinits // log is global, so it's initialization can be done in init
func init() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix | log.LUTC | log.Lshortfile | log.Lmicroseconds)
	config.MustLoadFromKey("logger", &appCfg)
	if appCfg.Level == "" {
		appCfg.Level = info
	}
}

func enabled(levels ...string) bool {
	current := strings.ToLower(appCfg.Level)
	for _, lvl := range levels {
		if current == lvl {
			return true
		}
	}

	return false
}

func printf(prefix, msg string, fields []any) {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(msg)
	for ix := 0; ix+1 < len(fields); ix += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", fields[ix], fields[ix+1]))
	}
	if len(fields)%2 == 1 {
		sb.WriteString(fmt.Sprintf(" %v", fields[len(fields)-1]))
	}
	log.Print(sb.String())
}

func Error(err error, fields ...any) {
	if err == nil {
		return
	}
	printf("ERROR:", err.Error(), fields)
}

func Debug(msg string, fields ...any) {
	if !enabled(debug) {
		return
	}
	printf("DEBUG:", msg, fields)
}

func Info(msg string, fields ...any) {
	if !enabled(debug, info) {
		return
	}
	printf("INFO:", msg, fields)
}

func Warn(msg string, fields ...any) {
	if !enabled(debug, info, warn) {
		return
	}
	printf("WARN:", msg, fields)
}

func Fatal(anything any, fields ...any) {
	if anything == nil {
		return
	}
	defer os.Exit(1)
	Error(toError(anything), fields...)
}

func Panic(anything any, fields ...any) {
	if anything == nil {
		return
	}
	defer func() {
		panic(anything)
	}()
	Error(toError(anything), fields...)
}

func toError(anything any) error {
	switch obj := anything.(type) {
	case error:
		return obj
	case string:
		return errors.New(obj)
	default:
		return errors.Errorf("%#v", obj)
	}
}

func Level() string {
	return appCfg.Level
}
