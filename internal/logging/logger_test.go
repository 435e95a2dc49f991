package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	Configure(Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG})
	defer Configure(Options{ConsoleLevel: INFO, FileLevel: DEBUG})

	l, err := NewLogger("streaming")
	require.NoError(t, err)

	l.Trace("скрыто %d", 1)
	l.Debug("чанк %s загружен", "(0,0)")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "streaming_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "[DEBUG] [streaming] чанк (0,0) загружен"), text)
	assert.False(t, strings.Contains(text, "скрыто"))
}

func TestManagerReusesLoggers(t *testing.T) {
	lm := newLoggerManager()

	a, err := lm.GetLogger("terrain")
	require.NoError(t, err)
	b, err := lm.GetLogger("terrain")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = lm.GetLogger("render")
	require.NoError(t, err)
	assert.Equal(t, []string{"render", "terrain"}, lm.Components())

	require.NoError(t, lm.SetLogLevel("render", WARN, WARN))
	assert.Error(t, lm.SetLogLevel("missing", WARN, WARN))
	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.Components())
}

func TestConfigureRelevelsExistingLoggers(t *testing.T) {
	defer Configure(Options{ConsoleLevel: INFO, FileLevel: DEBUG})

	lm := GetLoggerManager()
	early, err := lm.GetLogger("relevel-early")
	require.NoError(t, err)
	assert.Equal(t, INFO, early.minConsoleLevel)

	Configure(Options{
		ConsoleLevel: WARN,
		FileLevel:    ERROR,
		Components:   map[string]LogLevel{"relevel-early": TRACE},
	})
	assert.Equal(t, TRACE, early.minConsoleLevel)
	assert.Equal(t, ERROR, early.minFileLevel)
	assert.Equal(t, WARN, Default().minConsoleLevel)

	late, err := lm.GetLogger("relevel-late")
	require.NoError(t, err)
	assert.Equal(t, WARN, late.minConsoleLevel)

	Configure(Options{ConsoleLevel: ERROR, FileLevel: DEBUG})
	assert.Equal(t, ERROR, early.minConsoleLevel)
	assert.Equal(t, ERROR, late.minConsoleLevel)

	// SetLogLevel действует до следующего Configure
	require.NoError(t, lm.SetLogLevel("relevel-late", DEBUG, DEBUG))
	assert.Equal(t, DEBUG, late.minConsoleLevel)
}
