// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// recorder collects an ordered trace of side effects across fakes.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// --- Transaction manager ---

type memTxManager struct {
	err error
}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx, nil)
}

// --- Applications ---

type memApplicationRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Application
	createErr error
	updateErr error
	countErr  error
}

func newMemApplicationRepo() *memApplicationRepo {
	return &memApplicationRepo{store: make(map[string]*model.Application)}
}

func (m *memApplicationRepo) Create(ctx context.Context, tx repository.Tx, app *model.Application) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[app.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *app
	m.store[app.ID] = &cp
	return nil
}

func (m *memApplicationRepo) Update(ctx context.Context, tx repository.Tx, id string, patch model.ApplicationPatch) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	patch.ApplyTo(a, time.Now().UTC())
	return nil
}

func (m *memApplicationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memApplicationRepo) CountCreatedSince(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.store {
		if a.UserID == userID && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memApplicationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Application
	for _, a := range m.store {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// seed inserts an application created at the given time.
func (m *memApplicationRepo) seed(userID string, createdAt time.Time, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		app, _ := model.NewApplication(userID, "https://jobs.lever.co/seed/1")
		app.CreatedAt = createdAt
		m.store[app.ID] = app
	}
}

func (m *memApplicationRepo) byStatus(status model.ApplicationStatus) []*model.Application {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Application
	for _, a := range m.store {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memApplicationRepo) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// --- Application logs ---

type memLogRepo struct {
	mu        sync.RWMutex
	entries   []*model.ApplicationLog
	appendErr error
	rec       *recorder
}

func (m *memLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.ApplicationLog) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	m.rec.add("log:" + string(entry.Action) + ":" + string(entry.Status))
	return nil
}

func (m *memLogRepo) ListByApplication(ctx context.Context, tx repository.Tx, applicationID string) ([]*model.ApplicationLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ApplicationLog
	for _, e := range m.entries {
		if e.ApplicationID == applicationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLogRepo) count(action model.LogAction, status model.LogStatus) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if e.Action == action && e.Status == status {
			n++
		}
	}
	return n
}

// --- Profiles / Subscriptions ---

type MockProfileRepo struct {
	FindByUserIDFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error)
	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Profile) error
}

func (m *MockProfileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, tx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	return nil
}

type MockSubscriptionRepo struct {
	FindByUserIDFunc      func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
	SaveFunc              func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	ListActiveUserIDsFunc func(ctx context.Context, tx repository.Tx) ([]string, error)
}

func (m *MockSubscriptionRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, tx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	return nil
}

func (m *MockSubscriptionRepo) ListActiveUserIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	if m.ListActiveUserIDsFunc != nil {
		return m.ListActiveUserIDsFunc(ctx, tx)
	}
	return nil, nil
}

// --- External collaborators ---

type fakeDiscovery struct {
	mu    sync.Mutex
	urls  []string
	err   error
	calls int
	limit int
}

func (f *fakeDiscovery) Search(ctx context.Context, profile *model.Profile, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.urls...), nil
}

func (f *fakeDiscovery) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScorer struct {
	ScoreFunc func(ctx context.Context, markup string, profile *model.Profile) (adapter.MatchResult, error)
}

func (f *fakeScorer) Score(ctx context.Context, markup string, profile *model.Profile) (adapter.MatchResult, error) {
	if f.ScoreFunc != nil {
		return f.ScoreFunc(ctx, markup, profile)
	}
	return adapter.MatchResult{IsMatch: true, MatchScore: 90, Reasoning: "strong fit"}, nil
}

type fakeAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, screenshot []byte, markup string) (adapter.FormAnalysis, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, screenshot []byte, markup string) (adapter.FormAnalysis, error) {
	if f.AnalyzeFunc != nil {
		return f.AnalyzeFunc(ctx, screenshot, markup)
	}
	return adapter.FormAnalysis{Success: true, Fields: map[string]string{
		"#first": model.FieldFirstName,
		"#last":  model.FieldLastName,
		"#email": model.FieldEmail,
		"#phone": model.FieldPhone,
		"#go":    model.FieldSubmitButton,
	}}, nil
}

type fakeBrowser struct {
	mu          sync.Mutex
	rec         *recorder
	openErr     error
	navigateErr map[string]error
	typeErr     map[string]error
	clickErr    error
	panicOn     string // url whose navigation panics
	markup      string
	sessions    []*fakeSession
}

func (b *fakeBrowser) Open(ctx context.Context) (adapter.BrowserSession, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeSession{browser: b}
	b.sessions = append(b.sessions, s)
	b.rec.add("open")
	return s, nil
}

func (b *fakeBrowser) allClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		if !s.isClosed() {
			return false
		}
	}
	return true
}

type fakeSession struct {
	browser *fakeBrowser
	mu      sync.Mutex
	url     string
	closed  bool
	typed   map[string]string
	clicked []string
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if s.browser.panicOn != "" && url == s.browser.panicOn {
		panic("renderer crashed")
	}
	if err := s.browser.navigateErr[url]; err != nil {
		return err
	}
	s.url = url
	s.browser.rec.add("navigate")
	return nil
}

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (s *fakeSession) Content(ctx context.Context) (string, error) {
	if s.browser.markup != "" {
		return s.browser.markup, nil
	}
	return "<html><head><title>Go Engineer</title></head><body data-url=\"" + s.url + "\"><form></form></body></html>", nil
}

func (s *fakeSession) Type(ctx context.Context, selector, text string) error {
	if err := s.browser.typeErr[selector]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typed == nil {
		s.typed = make(map[string]string)
	}
	s.typed[selector] = text
	return nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	if s.browser.clickErr != nil {
		return s.browser.clickErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicked = append(s.clicked, selector)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.browser.rec.add("close")
	}
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(markup, pageURL string) adapter.JobMetadata {
	return adapter.JobMetadata{Title: "Go Engineer", Company: "Acme"}
}

type fakeShots struct {
	saved int
}

func (f *fakeShots) Save(ctx context.Context, applicationID, step string, png []byte) (string, error) {
	f.saved++
	return "shots/" + applicationID + "_" + step + ".png", nil
}

type fakeSeen struct {
	mu   sync.Mutex
	urls map[string]bool
}

func (f *fakeSeen) Seen(ctx context.Context, userID, jobURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.urls[userID+"|"+jobURL], nil
}

func (f *fakeSeen) Mark(ctx context.Context, userID, jobURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.urls == nil {
		f.urls = make(map[string]bool)
	}
	f.urls[userID+"|"+jobURL] = true
	return nil
}

type fakeLocker struct {
	held    bool
	err     error
	unlocks int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.held {
		return "", domain.ErrLockNotAcquired
	}
	f.held = true
	return "token", nil
}

func (f *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	f.unlocks++
	f.held = false
	return nil
}

type fakeNotifier struct {
	sent []model.RunSummary
	err  error
}

func (f *fakeNotifier) NotifyRun(ctx context.Context, s model.RunSummary) error {
	f.sent = append(f.sent, s)
	return f.err
}

var errBoom = errors.New("boom")

const testUserID = "8c3a1a44-5f0e-4a8c-9d3c-2f1b8f0e7a11"

func completeProfile() *model.Profile {
	return &model.Profile{
		UserID:          testUserID,
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Phone:           "+44 20 7946 0000",
		Location:        "London",
		Summary:         "Backend engineer",
		Skills:          []string{"go", "postgres"},
		ExperienceYears: 7,
	}
}

func activeSub(limit int) *model.Subscription {
	return &model.Subscription{ID: "sub-1", UserID: testUserID, Status: model.SubscriptionStatusActive, PlanName: "Standard", ApplicationsLimit: limit}
}

func jobURLs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "https://jobs.lever.co/acme/" + string(rune('a'+i))
	}
	return out
}
