// SPDX-License-Identifier: ice License 1.0

package log

// Private API.

const (
	maskedSecret = "xxxxx"
)

type (
	cfg struct {
		Encoder string `yaml:"encoder" mapstructure:"encoder"`
		Level   string `yaml:"level" mapstructure:"level"`
	}
)
