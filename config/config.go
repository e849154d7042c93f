// SPDX-License-Identifier: ice License 1.0

package config

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	applicationConfigFile = "application.yaml"
	dotEnvFile            = ".env"
	dotEnvSearchDepth     = 5
)

//nolint:gochecknoinits // Because we load the configs once, for the whole runtime
func init() {
	loadFirstApplicationConfigFile()
	loadDotEnv()
	viper.AutomaticEnv()
}

// MustLoadFromKey unmarshals the application.yaml subtree found at key into cfg.
func MustLoadFromKey(key string, cfg any) {
	if err := viper.UnmarshalKey(key, cfg); err != nil {
		log.Panic(errors.Wrapf(err, "failed to load config by key %q", key))
	}
}

// Env returns the first non-empty environment value among keys, in order.
func Env(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(viper.GetString(key)); val != "" {
			return val
		}
	}

	return ""
}

func loadDotEnv() {
	dotEnvPath := dotEnvFile
	for range dotEnvSearchDepth {
		if err := godotenv.Load(dotEnvPath); err == nil {
			return
		}
		dotEnvPath = fmt.Sprintf(`../%v`, dotEnvPath)
	}
}

func loadFirstApplicationConfigFile() {
	for _, f := range findAllApplicationConfigFiles() {
		viper.SetConfigFile(f)
		if err := viper.ReadInConfig(); err == nil {
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Panic(err)
		}
	}

	log.Panic(errors.New("could not find any application.yaml files"))
}

func findAllApplicationConfigFiles() []string {
	var hints []string
	if p, err := os.Getwd(); err == nil {
		hints = append(hints, p)
	}
	if p, err := os.Executable(); err == nil {
		hints = append(hints, path.Dir(filepath.Join(p, "..")))
	}

	files := make([]string, 0, 2*len(hints)+2) //nolint:mnd // Two patterns per hint plus the relative ones.
	for _, dir := range hints {
		files = append(files, glob(filepath.Join(dir, ".testdata", applicationConfigFile))...)
		files = append(files, glob(filepath.Join(dir, applicationConfigFile))...)
	}
	//nolint:dogsled // Because those 3 blank identifiers are useless
	_, callerFile, _, _ := runtime.Caller(0)
	files = append(files, glob(filepath.Join(filepath.Dir(callerFile), "..", applicationConfigFile))...)
	files = append(files, glob(filepath.Join(filepath.Dir(callerFile), "..", "..", applicationConfigFile))...)

	return files
}

func glob(pattern string) []string {
	files, err := filepath.Glob(pattern)
	if err != nil {
		log.Println(errors.Wrapf(err, "glob failed for [%v]", pattern))

		return nil
	}

	return files
}
