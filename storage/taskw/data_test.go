package taskw

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "basic task",
			line: `[description:"Buy milk" entry:"1700000000" status:"pending" uuid:"3f0c4d1e-8a7b-4c2d-9e1f-123456789abc"]`,
			want: map[string]string{
				"description": "Buy milk",
				"entry":       "1700000000",
				"status":      "pending",
				"uuid":        "3f0c4d1e-8a7b-4c2d-9e1f-123456789abc",
			},
		},
		{
			name: "escaped characters",
			line: `[description:"see &open;docs&close; and say &dquot;hi&dquot;" uuid:"u1"]`,
			want: map[string]string{
				"description": `see [docs] and say "hi"`,
				"uuid":        "u1",
			},
		},
		{
			name:    "missing brackets",
			line:    `description:"Buy milk" uuid:"u1"`,
			wantErr: true,
		},
		{
			name:    "unterminated value",
			line:    `[description:"Buy milk uuid:"u1"]`,
			wantErr: true,
		},
		{
			name:    "missing uuid",
			line:    `[description:"Buy milk"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Attrs)
		})
	}
}

func TestFormatTaskRoundTrip(t *testing.T) {
	orig := task{Attrs: map[string]string{
		"uuid":        "u1",
		"description": `tricky [value] with "quotes"`,
		"status":      "pending",
		"project":     "home",
	}}

	back, err := parseLine(formatTask(orig))
	require.NoError(t, err)
	assert.Equal(t, orig.Attrs, back.Attrs)
}

func TestFormatTaskSortsKeys(t *testing.T) {
	line := formatTask(task{Attrs: map[string]string{
		"uuid":        "u1",
		"description": "stable",
		"entry":       "1700000000",
	}})
	assert.Equal(t, `[description:"stable" entry:"1700000000" uuid:"u1"]`, line)
}

func TestTaskTime(t *testing.T) {
	tk := task{Attrs: map[string]string{
		"entry": "1700000000",
		"due":   "20240301T140000Z",
		"bad":   "not a time",
	}}

	ts, ok := tk.time("entry")
	assert.True(t, ok)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ts)

	ts, ok = tk.time("due")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC), ts)

	_, ok = tk.time("bad")
	assert.False(t, ok)
	_, ok = tk.time("absent")
	assert.False(t, ok)
}

func TestAnnotationsOrdered(t *testing.T) {
	tk := task{Attrs: map[string]string{
		"uuid":               "u1",
		"annotation_1700002": "second",
		"annotation_1700001": "first",
	}}
	assert.Equal(t, []string{"first", "second"}, tk.annotations())
}

func TestReadTasks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pending.data")
	content := `[description:"Buy milk" status:"pending" uuid:"u1"]

[description:"Call mom" status:"pending" uuid:"u2"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tasks, err := readTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "u1", tasks[0].UUID())
	assert.Equal(t, "u2", tasks[1].UUID())

	missing, err := readTasks(filepath.Join(dir, "absent.data"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
