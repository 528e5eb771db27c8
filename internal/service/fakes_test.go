package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/queue"
	"github.com/iliyamo/formbox/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.User

	createErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint64]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	for _, x := range f.byID {
		if x.Email == u.Email || x.Username == u.Username {
			return 0, repository.ErrConflict
		}
	}
	f.nextID++
	cpy := *u
	cpy.ID = f.nextID
	f.byID[cpy.ID] = &cpy
	u.ID = cpy.ID
	return cpy.ID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeSessions struct {
	mu     sync.Mutex
	byHash map[string]*model.Session
}

var _ repository.SessionRepository = (*fakeSessions)(nil)

func newFakeSessions() *fakeSessions { return &fakeSessions{byHash: map[string]*model.Session{}} }

func (f *fakeSessions) Create(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[hash] = &model.Session{ID: uint64(len(f.byHash) + 1), UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return nil
}

func (f *fakeSessions) GetByHash(_ context.Context, hash string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSessions) Revoke(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byHash[hash]; ok && s.RevokedAt == nil {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

// fakeStore backs both the form and the submission fakes so deletes
// cascade the way the schema does.
type fakeStore struct {
	mu          sync.Mutex
	nextForm    uint64
	nextEvent   uint64
	nextRow     uint64
	forms       map[uint64]model.Form
	fields      map[uint64][]model.Field
	submissions []model.Submission
}

func newFakeStore() *fakeStore {
	return &fakeStore{forms: map[uint64]model.Form{}, fields: map[uint64][]model.Field{}}
}

type fakeForms struct{ *fakeStore }

var _ repository.FormRepository = fakeForms{}

func (f fakeForms) CreateWithFields(_ context.Context, form *model.Form, fields []model.Field) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextForm++
	form.ID = f.nextForm
	f.forms[form.ID] = *form
	rows := make([]model.Field, len(fields))
	for i, fd := range fields {
		fd.ID = uint64(i + 1)
		fd.FormID = form.ID
		rows[i] = fd
	}
	f.fields[form.ID] = rows
	return form.ID, nil
}

func (f fakeForms) GetByID(_ context.Context, id uint64) (*model.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &form, nil
}

func (f fakeForms) ListAll(context.Context) ([]model.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Form{}
	for _, form := range f.forms {
		out = append(out, form)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeForms) ListFields(_ context.Context, formID uint64) ([]model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Field{}, f.fields[formID]...), nil
}

func (f fakeForms) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[id]
	if !ok {
		return repository.ErrNotFound
	}
	if form.OwnerID != ownerID {
		return repository.ErrForbidden
	}
	delete(f.forms, id)
	delete(f.fields, id)
	kept := f.submissions[:0]
	for _, s := range f.submissions {
		if s.FormID != id {
			kept = append(kept, s)
		}
	}
	f.submissions = kept
	return nil
}

type fakeSubmissions struct{ *fakeStore }

var _ repository.SubmissionRepository = fakeSubmissions{}

func (f fakeSubmissions) Create(_ context.Context, formID uint64, _ string, responses []model.Response) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.forms[formID]; !ok {
		return 0, repository.ErrNotFound
	}
	if len(responses) == 0 {
		return 0, nil
	}
	f.nextEvent++
	for _, r := range responses {
		f.nextRow++
		f.submissions = append(f.submissions, model.Submission{
			ID: f.nextRow, FormID: formID, EventID: f.nextEvent, FieldID: r.FieldID, Value: r.Value,
		})
	}
	return f.nextEvent, nil
}

func (f fakeSubmissions) Page(_ context.Context, formID uint64, limit, offset int) ([]model.Submission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Submission
	for _, s := range f.submissions {
		if s.FormID == formID {
			all = append(all, s)
		}
	}
	out := []model.Submission{}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		out = append(out, all[i])
	}
	return out, int64(len(all)), nil
}

type fakePublisher struct {
	mu        sync.Mutex
	submitted []queue.FormSubmittedEvent
	deleted   []queue.FormDeletedEvent
}

func (p *fakePublisher) PublishFormSubmitted(_ context.Context, ev queue.FormSubmittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, ev)
	return nil
}

func (p *fakePublisher) PublishFormDeleted(_ context.Context, ev queue.FormDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, ev)
	return nil
}

func (p *fakePublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submitted), len(p.deleted)
}
