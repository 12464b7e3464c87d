//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/usecase"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Transaction Manager ---

type mockTxManager struct {
	WithTxFunc func(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *mockTxManager) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, opts, fn)
	}
	return fn(ctx, nil)
}

// --- Job Repository ---

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	SaveFunc      func(ctx context.Context, tx repository.Tx, job *model.Job) error
	FindByIDFunc  func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error)
	SaveCallCount int
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*model.Job)}
}

func copyJob(j *model.Job) *model.Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (m *mockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCallCount++
	m.jobs[job.ID] = copyJob(job)
	return nil
}

func (m *mockJobRepo) SaveIfActive(ctx context.Context, tx repository.Tx, job *model.Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[job.ID]
	if !ok || cur.Status.IsTerminal() {
		return false, nil
	}
	m.SaveCallCount++
	m.jobs[job.ID] = copyJob(job)
	return true, nil
}

func (m *mockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

func (m *mockJobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.OwnerID == ownerID {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockJobRepo) FetchAndMarkDownloading(ctx context.Context) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.Job
	for _, j := range m.jobs {
		if j.Status != model.JobStatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = model.JobStatusDownloading
	oldest.UpdatedAt = time.Now()
	return copyJob(oldest), nil
}

func (m *mockJobRepo) ListStalled(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if !j.Status.IsTerminal() && j.UpdatedAt.Before(cutoff) {
			out = append(out, copyJob(j))
		}
	}
	return out, nil
}

func (m *mockJobRepo) CountByStatusSince(ctx context.Context, tx repository.Tx, since time.Time) (map[model.JobStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.JobStatus]int)
	for _, j := range m.jobs {
		if !j.CreatedAt.Before(since) {
			out[j.Status]++
		}
	}
	return out, nil
}

// --- Media Item Repository ---

type mockItemRepo struct {
	mu    sync.Mutex
	items map[string]*model.MediaItem

	SaveFunc func(ctx context.Context, tx repository.Tx, item *model.MediaItem) error
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[string]*model.MediaItem)}
}

func copyItem(i *model.MediaItem) *model.MediaItem {
	c := *i
	return &c
}

func (m *mockItemRepo) Save(ctx context.Context, tx repository.Tx, item *model.MediaItem) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = copyItem(item)
	return nil
}

func (m *mockItemRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID string) ([]*model.MediaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.MediaItem
	for _, it := range m.items {
		if it.JobID == jobID {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

// --- Session Repository ---

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session

	SaveFunc   func(ctx context.Context, tx repository.Tx, s *model.Session) error
	DeleteFunc func(ctx context.Context, tx repository.Tx, id string) error
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.Session)}
}

func copySession(s *model.Session) *model.Session {
	c := *s
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	c.LastValidatedAt = copyTime(s.LastValidatedAt)
	c.LastUsedAt = copyTime(s.LastUsedAt)
	c.ExpiresAt = copyTime(s.ExpiresAt)
	return &c
}

func (m *mockSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Session) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copySession(s), nil
}

func (m *mockSessionRepo) FindActiveByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Session
	for _, s := range m.sessions {
		if s.OwnerID != ownerID || s.State != model.SessionStateActive {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		if s.LastValidatedAt != nil && (best.LastValidatedAt == nil || s.LastValidatedAt.After(*best.LastValidatedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return copySession(best), nil
}

func (m *mockSessionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepo) ExpireOlderThan(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.State == model.SessionStateActive && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			s.State = model.SessionStateExpired
			n++
		}
	}
	return n, nil
}

// --- User Repository ---

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *mockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID == tgID {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// --- Session Validator ---

type mockValidator struct {
	ValidateCredentialFunc func(ctx context.Context, payload string) (adapter.ValidationResult, error)
	CallCount              int
}

func (m *mockValidator) ValidateCredential(ctx context.Context, payload string) (adapter.ValidationResult, error) {
	m.CallCount++
	if m.ValidateCredentialFunc != nil {
		return m.ValidateCredentialFunc(ctx, payload)
	}
	return adapter.ValidationResult{Valid: true}, nil
}

// --- Content Fetch Adapter ---

type mockFetcher struct {
	mu sync.Mutex

	ResolveFunc         func(ctx context.Context, sourceURL string, session *model.Session) ([]adapter.RemoteMedia, error)
	FetchFunc           func(ctx context.Context, media adapter.RemoteMedia, session *model.Session) (io.ReadCloser, int64, error)
	RequiresSessionFunc func(sourceURL string) bool

	resolveCalls int
	fetchCalls   int
}

func (m *mockFetcher) Resolve(ctx context.Context, sourceURL string, session *model.Session) ([]adapter.RemoteMedia, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.mu.Unlock()
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, sourceURL, session)
	}
	return nil, nil
}

func (m *mockFetcher) Fetch(ctx context.Context, media adapter.RemoteMedia, session *model.Session) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, media, session)
	}
	body := []byte("media-bytes")
	return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
}

func (m *mockFetcher) RequiresSession(sourceURL string) bool {
	if m.RequiresSessionFunc != nil {
		return m.RequiresSessionFunc(sourceURL)
	}
	return false
}

func (m *mockFetcher) calls() (resolve, fetch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls, m.fetchCalls
}

// --- Media Delivery Adapter ---

type mockDeliverer struct {
	mu sync.Mutex

	DeliverFunc func(ctx context.Context, d adapter.Delivery) (string, error)
	delivered   []string
}

func (m *mockDeliverer) Deliver(ctx context.Context, d adapter.Delivery) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeliverFunc != nil {
		id, err := m.DeliverFunc(ctx, d)
		if err == nil {
			m.delivered = append(m.delivered, d.Filename)
		}
		return id, err
	}
	m.delivered = append(m.delivered, d.Filename)
	return "msg-1", nil
}

func (m *mockDeliverer) deliveredFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// --- Staging Store ---

// memStaging keeps staged bytes in memory and counts releases per key so
// tests can assert the release-exactly-once invariant.
type memStaging struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	releases map[string]int
}

func newMemStaging() *memStaging {
	return &memStaging{blobs: make(map[string][]byte), releases: make(map[string]int)}
}

func (m *memStaging) Put(ctx context.Context, jobID, filename string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := jobID + "/" + filename
	m.blobs[key] = data
	return key, int64(len(data)), nil
}

func (m *memStaging) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, 0, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memStaging) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases[key]++
	delete(m.blobs, key)
	return nil
}

func (m *memStaging) Cleanup(ctx context.Context, olderThan time.Time) (adapter.CleanupReport, error) {
	return adapter.CleanupReport{}, nil
}

func (m *memStaging) stagedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func (m *memStaging) releaseCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases[key]
}

type mockReportCache struct {
	mu      sync.Mutex
	reports map[string]*usecase.JobReport
	GetFunc func(ctx context.Context, jobID string) (*usecase.JobReport, error)
	stores  int
	gets    int
}

func newMockReportCache() *mockReportCache {
	return &mockReportCache{reports: map[string]*usecase.JobReport{}}
}

func (m *mockReportCache) Get(ctx context.Context, jobID string) (*usecase.JobReport, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.reports[jobID], nil
}

func (m *mockReportCache) Store(ctx context.Context, report *usecase.JobReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	m.reports[report.JobID] = report
	return nil
}

func (m *mockReportCache) Invalidate(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, jobID)
	return nil
}
