package remind

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remdav/storage"
)

func writeRemindFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func contentUID(file, raw string) string {
	sum := sha1.Sum([]byte(file + ":" + raw))
	return hex.EncodeToString(sum[:]) + "@remdav"
}

func TestAdapterCollections(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	work := filepath.Join(dir, "work.rem")
	writeRemindFile(t, root,
		"REM 2024-03-01 MSG Dentist",
		"INCLUDE work.rem",
	)
	writeRemindFile(t, work, "REM 2024-03-04 AT 10:00 MSG Standup")

	a := New(root, time.UTC, dir)
	cols, err := a.Collections()
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, ".reminders", cols[0].Path)
	assert.Equal(t, "work.rem", cols[1].Path)
	for _, col := range cols {
		assert.Equal(t, storage.KindCalendar, col.Kind)
		assert.Equal(t, []string{"VEVENT"}, col.SupportedComponents)
	}
}

func TestAdapterGet(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	line := "REM 2024-03-01 MSG Dentist"
	writeRemindFile(t, root, line)

	a := New(root, time.UTC, dir)
	uids, err := a.UIDs(".reminders")
	require.NoError(t, err)
	require.Len(t, uids, 1)
	assert.Equal(t, contentUID(root, line), uids[0])

	obj, err := a.Get(".reminders", uids[0])
	require.NoError(t, err)
	assert.Equal(t, uids[0], obj.ID)
	assert.Equal(t, `"`+uids[0]+`"`, obj.ETag)
	summary, err := obj.Event.Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", summary)

	_, err = a.Get(".reminders", "missing@remdav")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = a.Get("nonexistent", uids[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdapterPutAppends(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	writeRemindFile(t, root, "REM 2024-03-01 MSG Dentist")

	a := New(root, time.UTC, dir)

	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropSummary, "Standup")
	comp.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	comp.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC))

	uid, err := a.Put(".reminders", &storage.Object{Event: comp})
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	data, err := os.ReadFile(root)
	require.NoError(t, err)
	assert.Contains(t, string(data), "REM 2024-03-01 MSG Dentist")
	assert.Contains(t, string(data), "REM 2024-03-04 AT 10:00 DURATION 0:30 MSG Standup")

	obj, err := a.Get(".reminders", uid)
	require.NoError(t, err)
	summary, err := obj.Event.Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Standup", summary)
}

func TestAdapterPutReplaces(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	line := "REM 2024-03-01 MSG Dentist"
	writeRemindFile(t, root, line)

	a := New(root, time.UTC, dir)
	oldUID := contentUID(root, line)

	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropSummary, "Dentist moved")
	dtstart := ical.NewProp(ical.PropDateTimeStart)
	dtstart.SetDate(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	comp.Props.Set(dtstart)

	newUID, err := a.Put(".reminders", &storage.Object{ID: oldUID, Event: comp})
	require.NoError(t, err)
	assert.NotEqual(t, oldUID, newUID)

	data, err := os.ReadFile(root)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "REM 2024-03-01 MSG Dentist")
	assert.Contains(t, string(data), "REM 2024-03-08 MSG Dentist moved")

	_, err = a.Get(".reminders", oldUID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAdapterRemove(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	keep := "REM 2024-03-01 MSG Dentist"
	drop := "REM 2024-03-02 MSG Haircut"
	writeRemindFile(t, root, keep, drop)

	a := New(root, time.UTC, dir)
	require.NoError(t, a.Remove(".reminders", contentUID(root, drop)))

	data, err := os.ReadFile(root)
	require.NoError(t, err)
	assert.Contains(t, string(data), keep)
	assert.NotContains(t, string(data), drop)

	assert.ErrorIs(t, a.Remove(".reminders", contentUID(root, drop)), storage.ErrNotFound)
}

func TestAdapterMissingRootFile(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")

	a := New(root, time.UTC, dir)
	cols, err := a.Collections()
	require.NoError(t, err)
	require.Len(t, cols, 1)

	uids, err := a.UIDs(".reminders")
	require.NoError(t, err)
	assert.Empty(t, uids)
}

func TestAdapterReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	writeRemindFile(t, root, "REM 2024-03-01 MSG Dentist")

	a := New(root, time.UTC, dir)
	uids, err := a.UIDs(".reminders")
	require.NoError(t, err)
	require.Len(t, uids, 1)

	writeRemindFile(t, root,
		"REM 2024-03-01 MSG Dentist",
		"REM 2024-03-02 MSG Haircut",
	)
	// The parse cache keys on mtime; force staleness for filesystems
	// with coarse timestamps.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(root, past, past))

	uids, err = a.UIDs(".reminders")
	require.NoError(t, err)
	assert.Len(t, uids, 2)
}

func TestAdapterSkipsUnparseableLines(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".reminders")
	writeRemindFile(t, root,
		"# comment",
		"OMIT 2024-01-01",
		"REM garbled line",
		"REM 2024-03-01 MSG Dentist",
	)

	a := New(root, time.UTC, dir)
	uids, err := a.UIDs(".reminders")
	require.NoError(t, err)
	assert.Len(t, uids, 1)
}
