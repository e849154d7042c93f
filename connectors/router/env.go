// SPDX-License-Identifier: ice License 1.0

package router

import (
	appCfg "github.com/ice-blockchain/rwrouter/config"
)

const (
	EnvDatabaseURL           = "DATABASE_URL"
	EnvWritePoolURL          = "DATABASE_WRITE_POOL_URL"
	EnvReadReplicaPrimaryURL = "DATABASE_READ_REPLICA_PRIMARY_URL"
	EnvReadReplicaEastURL    = "DATABASE_READ_REPLICA_EAST_URL"
)

// ConfigFromEnv builds a Config purely out of the DATABASE_* environment variables.
func ConfigFromEnv() *Config {
	cfg := new(Config)
	cfg.applyEnv()

	return cfg
}

// applyEnv lets the environment override the YAML configuration.
// The write target and the primary replica fall back to DATABASE_URL, the east replica is only added when set explicitly.
func (c *Config) applyEnv() {
	if url := appCfg.Env(EnvWritePoolURL, EnvDatabaseURL); url != "" {
		c.WriteURL = url
	}
	c.setReplicaURL(ReadPrimaryTargetID, appCfg.Env(EnvReadReplicaPrimaryURL, EnvDatabaseURL))
	c.setReplicaURL(ReadEastTargetID, appCfg.Env(EnvReadReplicaEastURL))
}

func (c *Config) setReplicaURL(id, url string) {
	if url == "" {
		return
	}
	for ix := range c.ReadReplicas {
		if c.ReadReplicas[ix].ID == id {
			c.ReadReplicas[ix].URL = url

			return
		}
	}
	c.ReadReplicas = append(c.ReadReplicas, ReplicaConfig{ID: id, URL: url})
}
