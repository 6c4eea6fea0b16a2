// Package ctlconfig loads the daemon's startup configuration: the
// initial set of ports to probe and their queue-sizing defaults.
// Follows the shape of a startup config loader that unmarshals a
// YAML/JSON document into a struct of component sub-configs before
// wiring modules together; here the sub-configs describe ifport sizing.
package ctlconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/routerctl/routerctl/ctlerr"
)

// PortConfig describes one port to probe at startup.
type PortConfig struct {
	DevArgs string `yaml:"devArgs"`
	Name    string `yaml:"name"`
	NRxq    int    `yaml:"nRxq"`
	NTxq    int    `yaml:"nTxq"`
	RxqSize int    `yaml:"rxqSize"`
	TxqSize int    `yaml:"txqSize"`
}

// Config is the daemon's top-level startup configuration.
type Config struct {
	// ListenGQL is the address mgmtgql's HTTP server binds to, e.g.
	// "localhost:3030". When empty, routerd listens on "localhost:3030".
	ListenGQL string `yaml:"gqlListen"`
	Ports     []PortConfig `yaml:"ports"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, e := os.ReadFile(path)
	if e != nil {
		return nil, ctlerr.New(ctlerr.Validation, "read config %s: %v", path, e)
	}
	var cfg Config
	if e := yaml.Unmarshal(data, &cfg); e != nil {
		return nil, ctlerr.New(ctlerr.Validation, "parse config %s: %v", path, e)
	}
	return &cfg, nil
}
