package mock

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

type MockFile struct {
	*bytes.Buffer
	ReadOnly bool
	ModTime  time.Time
}

type mockFileInfo struct {
	name    string
	mode    os.FileMode
	size    int64
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return nil }

// MockFileSystem implements the fs.FileSystem interface for testing.
// Directories must be registered explicitly with AddDir; modification
// times advance by one tick per write unless pinned with Touch.
type MockFileSystem struct {
	Files    map[string]*MockFile
	Dirs     map[string]bool
	ReadOnly map[string]bool // paths (files or dirs) that reject writes
	fileMode map[string]os.FileMode
	clock    time.Time
}

func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:    make(map[string]*MockFile),
		Dirs:     make(map[string]bool),
		ReadOnly: make(map[string]bool),
		fileMode: make(map[string]os.FileMode),
		clock:    time.Unix(1000, 0),
	}
}

func (m *MockFileSystem) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// AddDir registers a directory so Stat on it succeeds.
func (m *MockFileSystem) AddDir(path string) {
	m.Dirs[path] = true
}

// Touch pins a file's modification time, creating the file if absent.
func (m *MockFileSystem) Touch(path string, t time.Time) {
	file, ok := m.Files[path]
	if !ok {
		file = &MockFile{Buffer: bytes.NewBuffer(nil)}
		m.Files[path] = file
	}
	file.ModTime = t
}

func (m *MockFileSystem) ReadFile(filename string) ([]byte, error) {
	if file, ok := m.Files[filename]; ok {
		return file.Bytes(), nil
	}
	return nil, os.ErrNotExist
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if file, ok := m.Files[filename]; ok && file.ReadOnly {
		return os.ErrPermission
	}
	if m.ReadOnly[filename] || m.ReadOnly[filepath.Dir(filename)] {
		return os.ErrPermission
	}
	m.Files[filename] = &MockFile{Buffer: bytes.NewBuffer(data), ModTime: m.tick()}
	m.fileMode[filename] = perm

	return nil
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.Dirs[path] = true
	return nil
}

func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	if file, ok := m.Files[name]; ok {
		return &mockFileInfo{
			name:    filepath.Base(name),
			mode:    m.fileMode[name],
			size:    int64(file.Len()),
			modTime: file.ModTime,
		}, nil
	}
	if m.Dirs[name] {
		return &mockFileInfo{
			name:  filepath.Base(name),
			mode:  os.ModeDir | 0755,
			isDir: true,
		}, nil
	}
	return nil, os.ErrNotExist
}

func (m *MockFileSystem) Remove(name string) error {
	if _, ok := m.Files[name]; !ok {
		return os.ErrNotExist
	}
	delete(m.Files, name)
	delete(m.fileMode, name)
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	for name := range m.Files {
		if name == path || strings.HasPrefix(name, path+string(filepath.Separator)) {
			delete(m.Files, name)
			delete(m.fileMode, name)
		}
	}
	delete(m.Dirs, path)
	return nil
}

func (m *MockFileSystem) DoublestarGlob(pattern string) ([]string, error) {
	var matches []string
	for filename := range m.Files {
		matched, err := doublestar.Match(pattern, filename)
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, filename)
		}
	}
	return matches, nil
}
