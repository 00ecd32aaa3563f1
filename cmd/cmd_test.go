// cmd/cmd_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

func TestNewRootCommandWiring(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "marionette-cli", root.Use)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run [task description...]", run.Use)
	assert.NotNil(t, run.Flags().Lookup("start-url"))
	assert.NotNil(t, run.Flags().Lookup("tasks-file"))
	assert.NotNil(t, run.Flags().Lookup("auto-approve"))
}

func TestCollectTasksFromArgs(t *testing.T) {
	tasks, err := collectTasks([]string{"book", "a", "flight"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"book a flight"}, tasks)

	tasks, err = collectTasks(nil, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCollectTasksFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	content := "first task\n\n# a comment\nsecond task\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tasks, err := collectTasks(nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first task", "second task"}, tasks)
}

func TestCollectTasksMissingFile(t *testing.T) {
	_, err := collectTasks(nil, "/does/not/exist.txt")
	require.Error(t, err)
}

func TestBuildAcknowledgerAutoApprove(t *testing.T) {
	ack := buildAcknowledger(true)
	assert.True(t, ack("anything"))
}

func TestWriteTranscriptRedactsImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")

	conv := schemas.Conversation{
		{Role: schemas.RoleUser, Blocks: []schemas.ContentBlock{
			schemas.TextBlock("task"),
			schemas.ImageBlock("c2VjcmV0LXBpeGVscw=="),
		}},
	}

	require.NoError(t, writeTranscript(path, conv))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), schemas.RedactedImagePlaceholder)
	assert.NotContains(t, string(data), "c2VjcmV0LXBpeGVscw==")
}
