package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/dbkeeper/internal/domain"
)

type captureLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
	errs  []string
}

func (l *captureLogger) Infof(t string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(t, a...))
}

func (l *captureLogger) Warnf(t string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(t, a...))
}

func (l *captureLogger) Errorf(t string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, fmt.Sprintf(t, a...))
}

func (l *captureLogger) contains(lines []string, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type remoteFile struct {
	data       []byte
	modifiedAt time.Time
}

// fakeStore keeps objects in memory and records every call.
type fakeStore struct {
	mu        sync.Mutex
	files     map[string]remoteFile
	order     []string
	calls     []string
	now       time.Time
	uploadErr error
	listErr   error
	deleteErr map[string]error
}

func newFakeStore(now time.Time) *fakeStore {
	return &fakeStore{files: map[string]remoteFile{}, now: now, deleteErr: map[string]error{}}
}

func (s *fakeStore) put(name string, modifiedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		s.order = append(s.order, name)
	}
	s.files[name] = remoteFile{data: []byte("dump of " + name), modifiedAt: modifiedAt}
}

func (s *fakeStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeStore) called(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (s *fakeStore) EnsureFolder(ctx context.Context, path string) error { return nil }

func (s *fakeStore) Upload(ctx context.Context, localPath string) (string, error) {
	s.mu.Lock()
	s.record("upload " + filepath.Base(localPath))
	s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	name := filepath.Base(localPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		s.order = append(s.order, name)
	}
	s.files[name] = remoteFile{data: data, modifiedAt: s.now}
	return "backups/" + name, nil
}

func (s *fakeStore) ListAll(ctx context.Context) ([]domain.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("list")
	if s.listErr != nil {
		return nil, s.listErr
	}

	objects := make([]domain.RemoteObject, 0, len(s.files))
	for _, name := range s.order {
		f, ok := s.files[name]
		if !ok {
			continue
		}
		objects = append(objects, domain.RemoteObject{Name: name, ModifiedAt: f.modifiedAt, RemotePath: "backups/" + name})
	}
	return objects, nil
}

func (s *fakeStore) Download(ctx context.Context, remoteName, localPath string) error {
	s.mu.Lock()
	s.record("download " + remoteName)
	f, ok := s.files[remoteName]
	s.mu.Unlock()
	if !ok {
		return domain.NewError(domain.KindDownloadFailed, "download", localPath, errors.New("not found"))
	}
	return os.WriteFile(localPath, f.data, 0o644)
}

func (s *fakeStore) Delete(ctx context.Context, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete " + remoteName)
	if err := s.deleteErr[remoteName]; err != nil {
		return err
	}
	delete(s.files, remoteName)
	return nil
}

func (s *fakeStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type restoreCall struct {
	mode domain.DumpMode
	path string
	opts domain.RestoreOptions
}

type fakeEngine struct {
	mu       sync.Mutex
	now      time.Time
	dumpErr  error
	block    chan struct{}
	started  chan struct{}
	restores []restoreCall
}

func (e *fakeEngine) CreateDump(ctx context.Context, desc domain.DumpDescriptor) (domain.BackupArtifact, error) {
	if e.started != nil {
		close(e.started)
	}
	if e.block != nil {
		<-e.block
	}
	name := desc.FileName(e.now)
	path := filepath.Join(desc.LocalDirectory, name)
	if e.dumpErr != nil {
		return domain.BackupArtifact{}, e.dumpErr
	}

	data := []byte(strings.Repeat("INSERT INTO items VALUES (1);\n", 64))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.BackupArtifact{}, err
	}
	return domain.BackupArtifact{LocalPath: path, RemoteName: name, CreatedAt: e.now, SizeBytes: int64(len(data))}, nil
}

func (e *fakeEngine) RestoreFull(ctx context.Context, desc domain.DumpDescriptor, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restores = append(e.restores, restoreCall{mode: domain.ModeFull, path: path})
	return nil
}

func (e *fakeEngine) RestoreDataOnly(ctx context.Context, desc domain.DumpDescriptor, path string, opts domain.RestoreOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restores = append(e.restores, restoreCall{mode: domain.ModeDataOnly, path: path, opts: opts})
	return nil
}

func (e *fakeEngine) Ping(ctx context.Context, desc domain.DumpDescriptor) error { return nil }

// copyCompressor copies bytes through unchanged.
type copyCompressor struct{}

func (copyCompressor) Compress(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (c copyCompressor) Decompress(src, dst string) error {
	return c.Compress(src, dst)
}

func (copyCompressor) Extension() string { return ".gz" }

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	files    []string
	err      error
}

func (n *fakeNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func (n *fakeNotifier) SendFileToOperator(ctx context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.files = append(n.files, path)
	return n.err
}

type fakeMetrics struct {
	backups  []error
	restores []error
	deleted  int
	failed   int
}

func (m *fakeMetrics) ObserveBackup(d time.Duration, err error) { m.backups = append(m.backups, err) }
func (m *fakeMetrics) ObserveRestore(err error)                 { m.restores = append(m.restores, err) }
func (m *fakeMetrics) ObservePrune(deleted, failed int) {
	m.deleted += deleted
	m.failed += failed
}
