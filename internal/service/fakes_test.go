package service

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/events"
)

// memUserRepo 是 UserRepository 的内存实现。
type memUserRepo struct {
	mu      sync.Mutex
	users   []model.User
	findErr error
	// raceDuplicate 模拟检查通过后唯一索引仍然冲突。
	raceDuplicate bool
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raceDuplicate {
		return repository.ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	r.users = append(r.users, *u)
	return nil
}

func (r *memUserRepo) find(match func(model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *memUserRepo) FindAll(context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.User(nil), r.users...), nil
}

func (r *memUserRepo) EnsureIndexes(context.Context) error { return nil }

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type memDenylist struct {
	tokens map[string]time.Duration
}

func (d *memDenylist) Add(_ context.Context, token string, ttl time.Duration) error {
	d.tokens[token] = ttl
	return nil
}

func (d *memDenylist) Contains(_ context.Context, token string) (bool, error) {
	_, ok := d.tokens[token]
	return ok, nil
}

type embedCall struct {
	texts []string
	task  string
}

// hashEmbedder 为每段文本生成确定性的向量。
type hashEmbedder struct {
	mu    sync.Mutex
	dim   int
	err   error
	calls []embedCall
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string, task string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, embedCall{texts: texts, task: task})
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, e.dim)
	}
	return out, nil
}

func (e *hashEmbedder) Dimensions() int { return e.dim }

func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000) / 1000
	}
	return v
}

type stubLLM struct {
	answer  string
	err     error
	prompts []string
}

func (l *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	return l.answer, l.err
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	return s.text, s.err
}

type memObjectStore struct {
	objects map[string][]byte
	err     error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string][]byte{}}
}

func (s *memObjectStore) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.objects[name] = buf.Bytes()
	return "mem://" + name, nil
}

type memLedger struct {
	records []model.DocumentUpload
	nextID  uint
	listErr error
}

func (l *memLedger) Create(_ context.Context, rec *model.DocumentUpload) error {
	l.nextID++
	rec.ID = l.nextID
	rec.Status = model.UploadStatusProcessing
	l.records = append(l.records, *rec)
	return nil
}

func (l *memLedger) update(id uint, fn func(*model.DocumentUpload)) error {
	for i := range l.records {
		if l.records[i].ID == id {
			fn(&l.records[i])
			return nil
		}
	}
	return errors.New("no such record")
}

func (l *memLedger) MarkCompleted(_ context.Context, id uint, totalChunks int) error {
	return l.update(id, func(r *model.DocumentUpload) {
		r.Status = model.UploadStatusCompleted
		r.TotalChunks = totalChunks
	})
}

func (l *memLedger) MarkFailed(_ context.Context, id uint, reason string) error {
	return l.update(id, func(r *model.DocumentUpload) {
		r.Status = model.UploadStatusFailed
		r.ErrorMessage = reason
	})
}

func (l *memLedger) ListRecent(_ context.Context, limit int) ([]model.DocumentUpload, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	out := make([]model.DocumentUpload, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

type recordingPublisher struct {
	events []events.DocumentIngested
}

func (p *recordingPublisher) PublishIngested(_ context.Context, ev events.DocumentIngested) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
