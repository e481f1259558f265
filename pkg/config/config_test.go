package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetmaster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForUnsetKeys(t *testing.T) {
	path := writeConfig(t, "initial-containers: 3\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.InitialContainers)
	assert.Equal(t, 1024, cfg.ContainerMemoryMBs)
	assert.Equal(t, 1, cfg.ContainerCores)
	assert.False(t, cfg.ContainerHostAffinityEnabled)
	assert.Equal(t, 0, cfg.HelixInstanceMaxRetries)
}

func TestLoadOverridesAllSevenKeys(t *testing.T) {
	path := writeConfig(t, `
initial-containers: 5
container-memory-mbs: 2048
container-cores: 2
container-host-affinity-enabled: true
helix-instance-max-retries: 4
container-jvm-args: "-Xms512m -Dfoo=bar"
container-files-remote: "hdfs://a/b.jar,hdfs://a/c.jar"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.InitialContainers)
	assert.Equal(t, 2048, cfg.ContainerMemoryMBs)
	assert.Equal(t, 2, cfg.ContainerCores)
	assert.True(t, cfg.ContainerHostAffinityEnabled)
	assert.Equal(t, 4, cfg.HelixInstanceMaxRetries)
	assert.Equal(t, "-Xms512m -Dfoo=bar", cfg.ContainerJVMArgs)
	assert.Equal(t, []string{"hdfs://a/b.jar", "hdfs://a/c.jar"}, cfg.RemoteFiles())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"initial-containers":         "initial-containers: -1\n",
		"container-memory-mbs":       "container-memory-mbs: 0\n",
		"container-cores":            "container-cores: -2\n",
		"helix-instance-max-retries": "helix-instance-max-retries: -1\n",
	}

	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, contents)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestRemoteFilesEmptyWhenUnset(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.RemoteFiles())
}
