package cli

import (
	"testing"

	"github.com/ChuLiYu/superpy/internal/scheduler"
	"github.com/stretchr/testify/assert"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd)
	assert.Equal(t, "dispatchctl", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)

	commands := cmd.Commands()
	assert.Len(t, commands, 3)

	commandNames := make(map[string]bool)
	for _, c := range commands {
		commandNames[c.Name()] = true
	}
	assert.True(t, commandNames["run"])
	assert.True(t, commandNames["submit"])
	assert.True(t, commandNames["endpoints"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag)
}

func TestBuildRunCommand(t *testing.T) {
	cmd := buildRunCommand()

	assert.NotNil(t, cmd)
	assert.Equal(t, "run", cmd.Use)
	assert.Contains(t, cmd.Short, "Start")
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("local"))
	assert.NotNil(t, cmd.Flags().Lookup("metrics-port"))
}

func TestBuildSubmitCommand(t *testing.T) {
	cmd := buildSubmitCommand()

	assert.NotNil(t, cmd)
	assert.Equal(t, "submit", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	assert.NotNil(t, cmd.Flags().Lookup("name"))
	assert.NotNil(t, cmd.Flags().Lookup("priority"))
	assert.NotNil(t, cmd.Flags().Lookup("payload"))
	assert.NotNil(t, cmd.Flags().Lookup("max-time"))
}

func TestBuildEndpointsCommand(t *testing.T) {
	cmd := buildEndpointsCommand()

	assert.NotNil(t, cmd)
	assert.Equal(t, "endpoints", cmd.Use)
	assert.Contains(t, cmd.Short, "endpoints")
	assert.NotNil(t, cmd.RunE)
}

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	configFile = "/nonexistent/dispatchctl.yaml"
	defer func() { configFile = "" }()

	cfg, err := loadConfig()
	assert.NoError(t, err)
	assert.Empty(t, cfg.Endpoints)
	assert.Equal(t, scheduler.DefaultConfig().LoadTimeout, cfg.LoadTimeout)
}
