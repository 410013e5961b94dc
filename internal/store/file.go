package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"monthplan/internal/model"
)

// FilePersister stores values in a single JSON document of the form
// {"<key>": <value>, ...}, the on-disk counterpart of browser local
// storage. Other keys in the document are preserved on save.
type FilePersister struct {
	path string
	key  string
}

func NewFilePersister(path, key string) *FilePersister {
	if key == "" {
		key = DefaultKey
	}
	return &FilePersister{path: path, key: key}
}

// Load returns nil (no saved tasks) when the file or the key is missing.
func (f *FilePersister) Load(_ context.Context) ([]model.Task, error) {
	doc, err := f.readDoc()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[f.key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var tasks []model.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (f *FilePersister) Save(_ context.Context, tasks []model.Task) error {
	doc, err := f.readDoc()
	if err != nil {
		// A corrupt document is replaced rather than blocking every save.
		doc = map[string]json.RawMessage{}
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	value, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	doc[f.key] = value

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(f.path, data)
}

func (f *FilePersister) readDoc() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// writeFileAtomic writes via a temp file in the same directory followed by
// a rename, so readers never observe a half-written document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".monthplan-tasks-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
