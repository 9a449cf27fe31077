package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Config
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{"-a", "127.0.0.1:9090", "-d", "db", "-s", "acc", "-S", "ref", "-t", "5m", "-r", "24h", "-l", "json"},
			want: Config{
				HTTPAddr:        "127.0.0.1:9090",
				DatabaseDSN:     "db",
				AccessSecret:    "acc",
				RefreshSecret:   "ref",
				AccessTokenTTL:  5 * time.Minute,
				RefreshTokenTTL: 24 * time.Hour,
				LogFormat:       "json",
			},
		},
		{
			name: "foreign flags ignored",
			args: []string{"-c", "cfg.json", "-env", "x.env", "-a", ":1"},
			want: Config{HTTPAddr: ":1"},
		},
		{
			name:    "bad duration",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}
