package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "short flag with separate value",
			args:    []string{"-c", "conf.json", "-a", "localhost"},
			allowed: []string{"-c"},
			want:    []string{"-c", "conf.json"},
		},
		{
			name:    "equals form",
			args:    []string{"--config=alt.json", "-a", "localhost"},
			allowed: []string{"--config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "unknown flags ignored",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "flag at end without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next flag is not taken as value",
			args:    []string{"-c", "-r", "300"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "several owned flags keep order",
			args:    []string{"-a", "host:1", "-seed", "-r", "250"},
			allowed: []string{"-a", "-r"},
			want:    []string{"-a", "host:1", "-r", "250"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "env.json")
		os.Args = []string{"bin", "-a", "x", "-config", "flag.json"}
		assert.Equal(t, "flag.json", ConfigPath())
	})

	t.Run("short flag", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "")
		os.Args = []string{"bin", "-c", "short.json"}
		assert.Equal(t, "short.json", ConfigPath())
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "env.json")
		os.Args = []string{"bin"}
		assert.Equal(t, "env.json", ConfigPath())
	})

	t.Run("nothing set", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "")
		os.Args = []string{"bin"}
		assert.Empty(t, ConfigPath())
	})
}
