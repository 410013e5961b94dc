package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLog "monthplan/internal/log"
	"monthplan/internal/model"
)

type failingPersister struct {
	loadErr, saveErr error
	saves            int
}

func (f *failingPersister) Load(context.Context) ([]model.Task, error) { return nil, f.loadErr }
func (f *failingPersister) Save(context.Context, []model.Task) error {
	f.saves++
	return f.saveErr
}

func sample(id string, day int) model.Task {
	return model.Task{
		ID:       id,
		Name:     "task " + id,
		Category: model.CategoryToDo,
		Start:    model.NewDate(2024, time.June, day),
		End:      model.NewDate(2024, time.June, day+1),
	}
}

func TestStore_AddReplaceRemove(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s := Open(ctx, p)

	require.NoError(t, s.Add(ctx, sample("a", 1)))
	require.NoError(t, s.Add(ctx, sample("b", 3)))
	assert.ErrorIs(t, s.Add(ctx, sample("a", 5)), ErrDuplicateID)

	renamed := sample("a", 1)
	renamed.Name = "renamed"
	require.NoError(t, s.Replace(ctx, renamed))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "renamed", list[0].Name, "replace keeps position")
	assert.Equal(t, "b", list[1].ID)

	assert.ErrorIs(t, s.Replace(ctx, sample("zzz", 1)), ErrNotFound)

	require.NoError(t, s.Remove(ctx, "a"))
	assert.ErrorIs(t, s.Remove(ctx, "a"), ErrNotFound)
	assert.Equal(t, 1, s.Len())

	saved, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.List(), saved)
	assert.Equal(t, 4, p.Saves())
}

func TestStore_RejectsInvalidSpan(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, NewMemoryPersister())

	bad := sample("a", 5)
	bad.End = bad.Start.AddDays(-1)
	assert.ErrorIs(t, s.Add(ctx, bad), model.ErrInvalidSpan)
	assert.Zero(t, s.Len())
}

func TestStore_UpdateSpan(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, NewMemoryPersister(sample("a", 1)))

	start := model.NewDate(2024, time.June, 10)
	end := model.NewDate(2024, time.June, 12)
	require.NoError(t, s.UpdateSpan(ctx, "a", start, end))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, start, got.Start)
	assert.Equal(t, end, got.End)
	assert.Equal(t, "task a", got.Name)

	assert.ErrorIs(t, s.UpdateSpan(ctx, "missing", start, end), ErrNotFound)
	assert.ErrorIs(t, s.UpdateSpan(ctx, "a", end, start), model.ErrInvalidSpan)
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, NewMemoryPersister())

	added, err := s.Upsert(ctx, sample("a", 1))
	require.NoError(t, err)
	assert.True(t, added)

	again := sample("a", 7)
	added, err = s.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, s.Len())

	got, _ := s.Get("a")
	assert.Equal(t, again.Start, got.Start)
}

func TestStore_UpsertUnless(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s := Open(ctx, p)
	keepAll := func(model.Task) bool { return true }

	added, written, err := s.UpsertUnless(ctx, sample("a", 1), keepAll)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, written)

	added, written, err = s.UpsertUnless(ctx, sample("a", 7), keepAll)
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, written)
	got, _ := s.Get("a")
	assert.Equal(t, sample("a", 1).Start, got.Start)

	_, written, err = s.UpsertUnless(ctx, sample("a", 7), func(model.Task) bool { return false })
	require.NoError(t, err)
	assert.True(t, written)
	got, _ = s.Get("a")
	assert.Equal(t, sample("a", 7).Start, got.Start)
}

func TestTaskEditedLocally(t *testing.T) {
	tk := sample("a", 1)
	assert.False(t, tk.EditedLocally(), "tasks made in the planner are never imported")

	tk.Imported = &model.ImportedSpan{Start: tk.Start, End: tk.End}
	assert.False(t, tk.EditedLocally())
	assert.True(t, tk.WithSpan(tk.Start.AddDays(1), tk.End.AddDays(1)).EditedLocally())
}

func TestOpen_ReadFailureStartsEmpty(t *testing.T) {
	s := Open(context.Background(), &failingPersister{loadErr: errors.New("corrupt")})
	assert.Zero(t, s.Len())
}

func TestOpen_DropsInvalidAndDuplicateRecords(t *testing.T) {
	bad := sample("bad", 5)
	bad.Start, bad.End = bad.End, bad.Start
	p := NewMemoryPersister(sample("a", 1), bad, sample("a", 2), model.Task{Name: "no id"})

	var logs bytes.Buffer
	appLog.SetOutput(&logs)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	s := Open(context.Background(), p)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, model.NewDate(2024, time.June, 1), s.List()[0].Start)
	assert.Contains(t, logs.String(), ErrDuplicateID.Error())
	assert.Contains(t, logs.String(), model.ErrInvalidSpan.Error())
}

func TestStore_WriteFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{saveErr: errors.New("quota exceeded")}
	s := Open(ctx, p)

	require.NoError(t, s.Add(ctx, sample("a", 1)))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, p.saves)
}

func TestFilePersister_RoundTripAndForeignKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600))

	p := NewFilePersister(path, "")
	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	tasks := []model.Task{sample("a", 1), sample("b", 2)}
	require.NoError(t, p.Save(ctx, tasks))

	loaded, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tasks, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"theme": "dark"`)
	assert.Contains(t, string(data), DefaultKey)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFilePersister_MissingFileAndCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")

	loaded, err := NewFilePersister(path, "k").Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err = NewFilePersister(path, "k").Load(ctx)
	assert.Error(t, err)

	// Opening over a corrupt file starts empty, and the next save repairs it.
	s := Open(ctx, NewFilePersister(path, "k"))
	assert.Zero(t, s.Len())
	require.NoError(t, s.Add(ctx, sample("a", 1)))

	loaded, err = NewFilePersister(path, "k").Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	p, err := NewSQLitePersister(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	s := Open(ctx, p)
	require.NoError(t, s.Add(ctx, sample("a", 1)))
	require.NoError(t, s.Add(ctx, sample("b", 4)))
	require.NoError(t, s.UpdateSpan(ctx, "a", model.NewDate(2024, time.June, 20), model.NewDate(2024, time.June, 21)))

	reopened := Open(ctx, p)
	assert.Equal(t, s.List(), reopened.List())
}

func TestNewPersister(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersister("", filepath.Join(dir, "a.json"), "")
	require.NoError(t, err)
	assert.IsType(t, &FilePersister{}, p)

	p, err = NewPersister("memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryPersister{}, p)

	p, err = NewPersister("sqlite", filepath.Join(dir, "a.db"), "")
	require.NoError(t, err)
	assert.IsType(t, &SQLitePersister{}, p)
	p.(*SQLitePersister).Close()

	_, err = NewPersister("redis", "", "")
	assert.Error(t, err)
}
