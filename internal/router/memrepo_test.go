package router_test

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/repository"
)

// memDB is an in-memory stand-in for the four repositories, enough to
// drive the HTTP API end to end.
type memDB struct {
	mu       sync.Mutex
	users    []model.User
	sessions map[string]*model.Session
	forms    []model.Form
	fields   map[uint64][]model.Field
	rows     []model.Submission
	events   uint64
}

func newMemDB() *memDB {
	return &memDB{sessions: map[string]*model.Session{}, fields: map[uint64][]model.Field{}}
}

func (m *memDB) PingContext(context.Context) error { return nil }

type memUsers struct{ *memDB }
type memSessions struct{ *memDB }
type memForms struct{ *memDB }
type memSubmissions struct{ *memDB }

var (
	_ repository.UserRepository       = memUsers{}
	_ repository.SessionRepository    = memSessions{}
	_ repository.FormRepository       = memForms{}
	_ repository.SubmissionRepository = memSubmissions{}
)

func (m memUsers) Create(_ context.Context, u *model.User) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email || x.Username == u.Username {
			return 0, repository.ErrConflict
		}
	}
	u.ID = uint64(len(m.users) + 1)
	m.users = append(m.users, *u)
	return u.ID, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || id > uint64(len(m.users)) {
		return nil, repository.ErrNotFound
	}
	c := m.users[id-1]
	return &c, nil
}

func (m memSessions) Create(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[hash] = &model.Session{UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return nil
}

func (m memSessions) GetByHash(_ context.Context, hash string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m memSessions) Revoke(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[hash]; ok {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (m memForms) find(id uint64) (int, bool) {
	for i, f := range m.forms {
		if f.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (m memForms) CreateWithFields(_ context.Context, f *model.Form, fields []model.Field) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next uint64 = 1
	if n := len(m.forms); n > 0 {
		next = m.forms[n-1].ID + 1
	}
	f.ID = next
	m.forms = append(m.forms, *f)
	m.fields[f.ID] = append([]model.Field(nil), fields...)
	return f.ID, nil
}

func (m memForms) GetByID(_ context.Context, id uint64) (*model.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := m.forms[i]
	return &c, nil
}

func (m memForms) ListAll(context.Context) ([]model.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Form{}, m.forms...), nil
}

func (m memForms) ListFields(_ context.Context, id uint64) ([]model.Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Field{}, m.fields[id]...), nil
}

func (m memForms) DeleteByIDAndOwner(_ context.Context, id, owner uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(id)
	if !ok {
		return repository.ErrNotFound
	}
	if m.forms[i].OwnerID != owner {
		return repository.ErrForbidden
	}
	m.forms = append(m.forms[:i], m.forms[i+1:]...)
	delete(m.fields, id)
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.FormID != id {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m memSubmissions) Create(_ context.Context, formID uint64, _ string, responses []model.Response) (uint64, error) {
	if _, err := (memForms{m.memDB}).GetByID(context.Background(), formID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(responses) == 0 {
		return 0, nil
	}
	m.events++
	for _, r := range responses {
		m.rows = append(m.rows, model.Submission{
			ID: uint64(len(m.rows) + 1), FormID: formID, EventID: m.events, FieldID: r.FieldID, Value: r.Value,
		})
	}
	return m.events, nil
}

func (m memSubmissions) Page(_ context.Context, formID uint64, limit, offset int) ([]model.Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Submission
	for _, r := range m.rows {
		if r.FormID == formID {
			all = append(all, r)
		}
	}
	out := []model.Submission{}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		out = append(out, all[i])
	}
	return out, int64(len(all)), nil
}
