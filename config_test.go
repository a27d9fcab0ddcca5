package chidb

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_RoundTrips(t *testing.T) {
	a := require.New(t)

	f, err := ioutil.TempFile(os.TempDir(), "chidb-config-*.yaml")
	a.NoError(err)
	defer os.Remove(f.Name())

	_, err = f.WriteString("data_directory: /tmp/chidb-data\npage_size: 4096\nlog_level: debug\n")
	a.NoError(err)
	a.NoError(f.Close())

	config, err := LoadConfig(f.Name())
	a.NoError(err)
	a.Equal("/tmp/chidb-data", config.DataDir)
	a.Equal(uint16(4096), config.PageSize)
	a.Equal(logrus.DebugLevel, config.LogLevel)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	a := require.New(t)
	_, err := LoadConfig("/nonexistent/chidb-config.yaml")
	a.Error(err)
}
