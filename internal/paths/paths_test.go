package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func homeDir(t *testing.T) string {
	t.Helper()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	return home
}

func TestPlatformDefaults_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}

	xdgRoot := t.TempDir()

	t.Run("config honors XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", filepath.Join(xdgRoot, "cfg"))
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(xdgRoot, "cfg", "chronicle"), got)
	})

	t.Run("config falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir(t), ".config", "chronicle"), got)
	})

	t.Run("data honors XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", filepath.Join(xdgRoot, "share"))
		got, err := DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(xdgRoot, "share", "chronicle"), got)
	})

	t.Run("data falls back to ~/.local/share", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		got, err := DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir(t), ".local", "share", "chronicle"), got)
	})
}

func TestPlatformDefaults_Darwin(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("darwin-only test")
	}

	// Config and data share one directory on macOS.
	want := filepath.Join(homeDir(t), "Library", "Application Support", "chronicle")

	cfg, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, want, cfg)

	data, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestResolveConfigDir_Precedence(t *testing.T) {
	t.Run("flag beats env", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/srv/chronicle/env-etc")
		got, err := ResolveConfigDir("/srv/chronicle/etc")
		require.NoError(t, err)
		assert.Equal(t, "/srv/chronicle/etc", got)
	})

	t.Run("env beats platform default", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/srv/chronicle/env-etc")
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, "/srv/chronicle/env-etc", got)
	})

	t.Run("platform default when nothing set", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "")
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, "chronicle", filepath.Base(got))
	})

	t.Run("relative inputs come back absolute", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "etc/from-env")
		fromEnv, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(fromEnv), "env path not absolute: %s", fromEnv)

		fromFlag, err := ResolveConfigDir("etc/from-flag")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(fromFlag), "flag path not absolute: %s", fromFlag)
	})
}

func TestResolveDataDir_Precedence(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	// Each case clears one more layer of the chain, so together they walk
	// the full precedence order: flag, config file, env, CWD default.
	tests := []struct {
		name string
		flag string
		conf string
		env  string
		want string
	}{
		{"flag first", "/srv/chronicle/flag-db", "/srv/chronicle/conf-db", "/srv/chronicle/env-db", "/srv/chronicle/flag-db"},
		{"then config file", "", "/srv/chronicle/conf-db", "/srv/chronicle/env-db", "/srv/chronicle/conf-db"},
		{"then env", "", "", "/srv/chronicle/env-db", "/srv/chronicle/env-db"},
		{"finally CWD default", "", "", "", filepath.Join(cwd, DefaultDataDirName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.conf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("relative inputs come back absolute", func(t *testing.T) {
		t.Setenv(EnvDataDir, "")
		fromFlag, err := ResolveDataDir("db/from-flag", "")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(fromFlag), "flag path not absolute: %s", fromFlag)

		fromConf, err := ResolveDataDir("", "db/from-conf")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(fromConf), "config path not absolute: %s", fromConf)
	})
}
