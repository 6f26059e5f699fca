package storage

import (
	"testing"
)

type gameRecord struct {
	GameID int64  `json:"game_id"`
	Note   string `json:"note"`
}

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() = %v", err)
	}
	return fs
}

func TestSaveAndLoadTextFile(t *testing.T) {
	fs := newTestStorage(t)
	dir := GameDir(1001)

	if err := fs.SaveTextFile(dir, "notes.txt", []byte("opening run")); err != nil {
		t.Fatalf("SaveTextFile() = %v", err)
	}
	got, err := fs.LoadTextFile(dir, "notes.txt")
	if err != nil {
		t.Fatalf("LoadTextFile() = %v", err)
	}
	if string(got) != "opening run" {
		t.Errorf("LoadTextFile() = %q", got)
	}

	// 第二次读取走缓存，内容一致
	cached, err := fs.LoadTextFile(dir, "notes.txt")
	if err != nil {
		t.Fatalf("LoadTextFile() cached = %v", err)
	}
	if string(cached) != "opening run" {
		t.Errorf("cached read = %q", cached)
	}
}

func TestSaveTextFile_OverwriteInvalidatesCache(t *testing.T) {
	fs := newTestStorage(t)
	dir := GameDir(1002)

	if err := fs.SaveTextFile(dir, "state.txt", []byte("v1")); err != nil {
		t.Fatalf("SaveTextFile() = %v", err)
	}
	if _, err := fs.LoadTextFile(dir, "state.txt"); err != nil {
		t.Fatalf("LoadTextFile() = %v", err)
	}
	if err := fs.SaveTextFile(dir, "state.txt", []byte("v2")); err != nil {
		t.Fatalf("SaveTextFile() overwrite = %v", err)
	}

	got, err := fs.LoadTextFile(dir, "state.txt")
	if err != nil {
		t.Fatalf("LoadTextFile() = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("after overwrite = %q, want v2 (stale cache)", got)
	}
}

func TestSaveAndLoadJSONFile(t *testing.T) {
	fs := newTestStorage(t)
	dir := GameDir(1003)

	in := gameRecord{GameID: 1003, Note: "double overtime"}
	if err := fs.SaveJSONFile(dir, "record.json", in); err != nil {
		t.Fatalf("SaveJSONFile() = %v", err)
	}

	var out gameRecord
	if err := fs.LoadJSONFile(dir, "record.json", &out); err != nil {
		t.Fatalf("LoadJSONFile() = %v", err)
	}
	if out != in {
		t.Errorf("roundtrip = %+v, want %+v", out, in)
	}
}

func TestFileAndDirLifecycle(t *testing.T) {
	fs := newTestStorage(t)
	dir := GameDir(1004)

	if fs.DirExists(dir) {
		t.Error("DirExists() = true before any save")
	}
	if err := fs.SaveTextFile(dir, "a.txt", []byte("x")); err != nil {
		t.Fatalf("SaveTextFile() = %v", err)
	}
	if !fs.DirExists(dir) || !fs.FileExists(dir, "a.txt") {
		t.Error("saved file not visible")
	}

	if err := fs.DeleteFile(dir, "a.txt"); err != nil {
		t.Fatalf("DeleteFile() = %v", err)
	}
	if fs.FileExists(dir, "a.txt") {
		t.Error("FileExists() = true after delete")
	}

	if err := fs.SaveTextFile(dir, "b.txt", []byte("y")); err != nil {
		t.Fatalf("SaveTextFile() = %v", err)
	}
	if err := fs.DeleteDir(dir); err != nil {
		t.Fatalf("DeleteDir() = %v", err)
	}
	if fs.DirExists(dir) {
		t.Error("DirExists() = true after DeleteDir")
	}
}

func TestListDirs(t *testing.T) {
	fs := newTestStorage(t)

	for _, id := range []int64{30, 10, 20} {
		if err := fs.SaveTextFile(GameDir(id), "x.txt", []byte("x")); err != nil {
			t.Fatalf("SaveTextFile() = %v", err)
		}
	}

	dirs, err := fs.ListDirs("games")
	if err != nil {
		t.Fatalf("ListDirs() = %v", err)
	}
	want := []string{"10", "20", "30"}
	if len(dirs) != len(want) {
		t.Fatalf("ListDirs() = %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("ListDirs()[%d] = %s, want %s (sorted)", i, dirs[i], want[i])
		}
	}
}
