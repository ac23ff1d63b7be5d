package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) counterTotal(name string, status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, counter := range m.counters {
		if counter.name != name {
			continue
		}
		if status != "" && counter.tags["status"] != status {
			continue
		}
		total += counter.value
	}
	return total
}

func (m *captureMetricsRecorder) histogramCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, histogram := range m.histograms {
		if histogram.name == name {
			count++
		}
	}
	return count
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]capturedLog, len(*l.records))
	copy(out, *l.records)
	return out
}

func (l *captureLogger) find(level string, msg string) (capturedLog, bool) {
	for _, record := range l.snapshot() {
		if record.level == level && record.msg == msg {
			return record, true
		}
	}
	return capturedLog{}, false
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

// mapStorage is a Storage kept entirely in a map; it is enough to observe
// identity and forwarding in provider tests.
type mapStorage struct {
	mu      sync.Mutex
	label   string
	records map[string]StorageRecord
	calls   int
}

func newMapStorage(label string) *mapStorage {
	return &mapStorage{label: label, records: map[string]StorageRecord{}}
}

func (s *mapStorage) AddRecord(_ context.Context, record StorageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	key := record.Type + "/" + record.ID
	if _, exists := s.records[key]; exists {
		return ErrDuplicateRecord
	}
	s.records[key] = record
	return nil
}

func (s *mapStorage) GetRecord(_ context.Context, recordType string, id string) (StorageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	record, ok := s.records[recordType+"/"+id]
	if !ok {
		return StorageRecord{}, ErrRecordNotFound
	}
	return record, nil
}

func (s *mapStorage) UpdateRecord(_ context.Context, record StorageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	key := record.Type + "/" + record.ID
	if _, exists := s.records[key]; !exists {
		return ErrRecordNotFound
	}
	s.records[key] = record
	return nil
}

func (s *mapStorage) DeleteRecord(_ context.Context, recordType string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	delete(s.records, recordType+"/"+id)
	return nil
}

func (s *mapStorage) FindRecords(_ context.Context, recordType string, _ map[string]string) ([]StorageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := []StorageRecord{}
	for _, record := range s.records {
		if record.Type == recordType {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// stubOpener records the calls a Session makes into its backend.
type stubOpener struct {
	mu           sync.Mutex
	transactions bool
	opened       []*stubBackend
	openErr      error
	bindErr      error
	commitErr    error
	rollbackErr  error
	releaseErr   error
	closed       int
}

func (o *stubOpener) OpenSession(_ context.Context, transactional bool) (SessionBackend, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	backend := &stubBackend{opener: o, transactional: transactional, storage: newMapStorage("session")}
	o.opened = append(o.opened, backend)
	return backend, nil
}

func (o *stubOpener) SupportsTransactions() bool {
	return o.transactions
}

func (o *stubOpener) Close(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	return nil
}

func (o *stubOpener) last() *stubBackend {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.opened) == 0 {
		return nil
	}
	return o.opened[len(o.opened)-1]
}

type stubBackend struct {
	opener        *stubOpener
	transactional bool
	storage       *mapStorage
	commits       int
	rollbacks     int
	releases      int
}

func (b *stubBackend) Bind(_ context.Context, scope *InjectionContext) error {
	if b.opener.bindErr != nil {
		return b.opener.bindErr
	}
	return scope.Injector().BindInstance(StorageCapability, b.storage)
}

func (b *stubBackend) Commit(context.Context) error {
	b.commits++
	return b.opener.commitErr
}

func (b *stubBackend) Rollback(context.Context) error {
	b.rollbacks++
	return b.opener.rollbackErr
}

func (b *stubBackend) Release(context.Context) error {
	b.releases++
	return b.opener.releaseErr
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
