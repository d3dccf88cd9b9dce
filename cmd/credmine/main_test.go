package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/passlink/credmine"
)

func TestMessageDecoder(t *testing.T) {
	d, err := newMessageDecoder()
	require.NoError(t, err)

	msg, err := d.Decode([]byte(`{"type":"capture","tab":"7","title":"Example","user":{"value":"bob","selector":"#user"},"password":{"value":"secret1"},"url":"https://example.com","hidden":true}`))
	require.NoError(t, err)
	require.Equal(t, messageCapture, msg.Type)
	require.Equal(t, "7", msg.TabID)
	require.Equal(t, "Example", msg.Title)
	require.Equal(t, "bob", msg.User.Value)
	require.Equal(t, "#user", *msg.User.Selector)
	require.Equal(t, "secret1", msg.Password.Value)
	require.True(t, msg.Hidden)

	msg, err = d.Decode([]byte(`{"type":"autofill","tab":"7","ids":["a","b"]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, msg.IDs)

	bad := map[string]string{
		"not json":          `{"type":`,
		"unknown type":      `{"type":"login"}`,
		"capture no secret": `{"type":"capture","title":"x"}`,
		"autofill no tab":   `{"type":"autofill","ids":[]}`,
		"field no value":    `{"type":"capture","password":{}}`,
	}
	for name, line := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode([]byte(line))
			require.Error(t, err)
		})
	}
}

func TestParseSettingValue(t *testing.T) {
	require.Equal(t, int64(5), parseSettingValue("5"))
	require.Equal(t, true, parseSettingValue("true"))
	require.Equal(t, "250ms", parseSettingValue(" 250ms "))
}

func TestWriteTasksPlain(t *testing.T) {
	var buf bytes.Buffer
	writeTasks(&buf, []*credmine.Task{{
		ID:       "t1",
		New:      true,
		Fields:   credmine.Fields{Label: "Example", Username: "bob", Password: "secret1"},
		Feedback: "storage down",
		Attempts: 2,
	}})
	out := buf.String()
	require.Contains(t, out, "t1\tfailed\tExample\tbob")
	require.NotContains(t, out, "secret1")

	buf.Reset()
	writeTasks(&buf, nil)
	require.Equal(t, "No tasks\n", buf.String())
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignLeft, alignRight})
	require.Contains(t, out, "A")
	require.Empty(t, renderTable(nil, nil, nil))
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	content := `
[queue]
dsn = "sqlite://` + filepath.ToSlash(filepath.Join(dir, "queue.db")) + `"

[storage]
path = "` + filepath.ToSlash(filepath.Join(dir, "credentials.db")) + `"

[settings]
path = "` + filepath.ToSlash(filepath.Join(dir, "settings.toml")) + `"

[mining]
retry_delay_ms = 1
max_attempts = 3

[logging]
level = "error"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunProcessesCaptures(t *testing.T) {
	cfg := writeTestConfig(t)
	input := strings.Join([]string{
		`{"type":"capture","title":"Example","user":{"value":"bob"},"password":{"value":"secret1"},"url":"https://example.com"}`,
		`not json`,
		`{"type":"capture","title":"Example","user":{"value":"bob"},"password":{"value":"secret1"},"url":"https://example.com/again"}`,
	}, "\n")

	out, err := execute(t, input, "--config", cfg, "run")
	require.NoError(t, err)
	require.Contains(t, out, "queued\thttps://example.com\n")

	out, err = execute(t, "", "--config", cfg, "queue", "list", "--all")
	require.NoError(t, err)
	require.Contains(t, out, "\tcreated\tExample\tbob")

	// the stored credential is indexed on the next start
	out, err = execute(t, `{"type":"capture","title":"Example","user":{"value":"bob"},"password":{"value":"secret1"},"url":"https://example.com"}`, "--config", cfg, "run")
	require.NoError(t, err)
	require.Contains(t, out, "skipped\thttps://example.com\n")
}

func TestSettingsCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := execute(t, "", "--config", cfg, "settings", "get", "mining.retry.delay")
	require.NoError(t, err)
	require.Equal(t, "1ms\n", out)

	_, err = execute(t, "", "--config", cfg, "settings", "set", "mining.retry.max", "7")
	require.NoError(t, err)

	out, err = execute(t, "", "--config", cfg, "settings", "get", "mining.retry.max")
	require.NoError(t, err)
	require.Equal(t, "7\n", out)

	out, err = execute(t, "", "--config", cfg, "settings", "reset", "mining.retry.max")
	require.NoError(t, err)
	require.Equal(t, "mining.retry.max = 3\n", out)

	_, err = execute(t, "", "--config", cfg, "settings", "get", "nope")
	require.Error(t, err)
}
