package chidb

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config describes how to open a database file, loaded from a YAML
// file by LoadConfig. LoadConfig only decodes the file; no code in this
// module opens a database from a Config.
type Config struct {
	DataDir  string       `yaml:"data_directory"`
	PageSize uint16       `yaml:"page_size"`
	LogLevel logrus.Level `yaml:"log_level"`
}

// LoadConfig reads and parses the YAML config file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	config := &Config{PageSize: 1024, LogLevel: logrus.InfoLevel}
	if err := yaml.NewDecoder(f).Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}
