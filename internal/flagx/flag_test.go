package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var serverFlags = []string{"-a", "-d", "-s", "-S"}

func TestFilterArgs(t *testing.T) {
	cases := map[string]struct {
		args []string
		want []string
	}{
		"separate values": {
			args: []string{"-a", ":5000", "-c", "laplink.json", "-d", "postgres://db"},
			want: []string{"-a", ":5000", "-d", "postgres://db"},
		},
		"equals form": {
			args: []string{"-a=:8080", "-env=prod.env", "-s=smtp.local"},
			want: []string{"-a=:8080", "-s=smtp.local"},
		},
		"order preserved, repeats kept": {
			args: []string{"-d", "first", "-a", ":1", "-d=second"},
			want: []string{"-d", "first", "-a", ":1", "-d=second"},
		},
		"trailing flag without value": {
			args: []string{"-S"},
			want: []string{"-S"},
		},
		"next flag is not taken as value": {
			args: []string{"-a", "-d", "dsn"},
			want: []string{"-a", "-d", "dsn"},
		},
		"positional and foreign flags dropped": {
			args: []string{"serve", "-x", "1", "--verbose"},
			want: []string{},
		},
		"nil args": {
			args: nil,
			want: []string{},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, FilterArgs(tc.args, serverFlags))
		})
	}
}

func TestConfigFilePath(t *testing.T) {
	assert.Empty(t, ConfigFilePath([]string{"-a", ":5000"}))
	assert.Equal(t, "laplink.json", ConfigFilePath([]string{"-c", "laplink.json", "-a", ":5000"}))
	assert.Equal(t, "alt.json", ConfigFilePath([]string{"--config=alt.json"}))
	assert.Equal(t, "second.json", ConfigFilePath([]string{"-c", "first.json", "-config", "second.json"}))
}

func TestEnvFilePath(t *testing.T) {
	assert.Equal(t, ".env", EnvFilePath(nil))
	assert.Equal(t, "prod.env", EnvFilePath([]string{"-a", ":9000", "-env", "prod.env"}))
	assert.Equal(t, "staging.env", EnvFilePath([]string{"--env=staging.env", "-d", "dsn"}))
}
