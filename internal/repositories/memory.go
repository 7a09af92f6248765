package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"commentboard/internal/dbx"
	"commentboard/internal/models"
)

// MemoryManager is a process-local Manager used with the "memory://" DSN
// and in tests. It enforces the same unique and foreign-key rules as the
// SQL schema. All access is serialized; InTx restores the previous state
// when fn fails.
type MemoryManager struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time
}

type memState struct {
	logins   map[int64]models.Login
	ecodes   map[int64]models.ECode
	nonces   map[int64]models.Nonce // keyed by ecode id
	comments []models.Comment

	lastLoginID, lastECodeID, lastCommentID int64
}

type memTxKey struct{}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		state: memState{
			logins: map[int64]models.Login{},
			ecodes: map[int64]models.ECode{},
			nonces: map[int64]models.Nonce{},
		},
		now: time.Now,
	}
}

func (s memState) clone() memState {
	c := s
	c.logins = make(map[int64]models.Login, len(s.logins))
	for k, v := range s.logins {
		c.logins[k] = v
	}
	c.ecodes = make(map[int64]models.ECode, len(s.ecodes))
	for k, v := range s.ecodes {
		c.ecodes[k] = v
	}
	c.nonces = make(map[int64]models.Nonce, len(s.nonces))
	for k, v := range s.nonces {
		c.nonces[k] = v
	}
	c.comments = append([]models.Comment(nil), s.comments...)
	return c
}

func (m *MemoryManager) Conn() dbx.DBTX { return nil }

func (m *MemoryManager) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	if m.inTx(ctx) {
		return fn(ctx, nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	defer func() {
		if p := recover(); p != nil {
			m.state = snapshot
			panic(p)
		}
		if err != nil {
			m.state = snapshot
		}
	}()

	txCtx := context.WithValue(ctx, memTxKey{}, m)
	if err = fn(txCtx, nil); err != nil {
		return err
	}
	// commit fails like BeginTx would on a cancelled request
	return ctx.Err()
}

func (m *MemoryManager) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryManager)
	return owner == m
}

// lock takes the store mutex unless ctx already belongs to a running InTx.
func (m *MemoryManager) lock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryManager) Ping(context.Context) error          { return nil }
func (m *MemoryManager) Close() error                        { return nil }

func (m *MemoryManager) Logins(dbx.DBTX) LoginRepository     { return memLogins{m} }
func (m *MemoryManager) ECodes(dbx.DBTX) ECodeRepository     { return memECodes{m} }
func (m *MemoryManager) Nonces(dbx.DBTX) NonceRepository     { return memNonces{m} }
func (m *MemoryManager) Comments(dbx.DBTX) CommentRepository { return memComments{m} }

// Counts reports the number of stored rows per table.
func (m *MemoryManager) Counts() (logins, ecodes, nonces, comments int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.logins), len(m.state.ecodes), len(m.state.nonces), len(m.state.comments)
}

type memLogins struct{ m *MemoryManager }

func (r memLogins) Create(ctx context.Context, login *models.Login) error {
	defer r.m.lock(ctx)()
	st := &r.m.state
	for _, l := range st.logins {
		if l.Name == login.Name {
			return models.ErrConflict
		}
	}
	st.lastLoginID++
	login.ID = st.lastLoginID
	login.Confirmed = false
	login.CreatedAt = r.m.now()
	st.logins[login.ID] = *login
	return nil
}

func (r memLogins) GetByID(ctx context.Context, id int64) (*models.Login, error) {
	defer r.m.lock(ctx)()
	l, ok := r.m.state.logins[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &l, nil
}

func (r memLogins) GetConfirmedByName(ctx context.Context, name string) (*models.Login, error) {
	defer r.m.lock(ctx)()
	for _, l := range r.m.state.logins {
		if l.Name == name && l.Confirmed {
			return &l, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r memLogins) MarkConfirmed(ctx context.Context, id int64) error {
	defer r.m.lock(ctx)()
	l, ok := r.m.state.logins[id]
	if !ok || l.Confirmed {
		return models.ErrNotFound
	}
	l.Confirmed = true
	r.m.state.logins[id] = l
	return nil
}

type memECodes struct{ m *MemoryManager }

func (r memECodes) Create(ctx context.Context, loginID int64, code string) (*models.ECode, error) {
	defer r.m.lock(ctx)()
	st := &r.m.state
	if _, ok := st.logins[loginID]; !ok {
		return nil, fmt.Errorf("ecode create: login %d does not exist", loginID)
	}
	for _, e := range st.ecodes {
		if e.Code == code {
			return nil, models.ErrConflict
		}
		if e.LoginID == loginID {
			return nil, fmt.Errorf("ecode create: login %d already has a code", loginID)
		}
	}
	st.lastECodeID++
	e := models.ECode{ID: st.lastECodeID, LoginID: loginID, Code: code, CreatedAt: r.m.now()}
	st.ecodes[e.ID] = e
	return &e, nil
}

func (r memECodes) Resolve(ctx context.Context, code, name, email string) (*models.PendingConfirmation, error) {
	defer r.m.lock(ctx)()
	return r.m.state.resolve(func(e models.ECode, l models.Login) bool {
		return e.Code == code && l.Name == name && l.Email == email
	})
}

func (r memECodes) ResolveByIdentity(ctx context.Context, name, email string) (*models.PendingConfirmation, error) {
	defer r.m.lock(ctx)()
	return r.m.state.resolve(func(_ models.ECode, l models.Login) bool {
		return l.Name == name && l.Email == email
	})
}

func (s memState) resolve(match func(models.ECode, models.Login) bool) (*models.PendingConfirmation, error) {
	for _, e := range s.ecodes {
		n, ok := s.nonces[e.ID]
		if !ok {
			continue
		}
		l, ok := s.logins[e.LoginID]
		if !ok || l.Confirmed || !match(e, l) {
			continue
		}
		return &models.PendingConfirmation{
			LoginID:        l.ID,
			LoginName:      l.Name,
			LoginEmail:     l.Email,
			ECodeID:        e.ID,
			NonceSecret:    n.SecretCode,
			NonceExpiresAt: n.ExpiresAt,
		}, nil
	}
	return nil, models.ErrNotFound
}

func (r memECodes) GetByLoginID(ctx context.Context, loginID int64) (*models.ECode, error) {
	defer r.m.lock(ctx)()
	for _, e := range r.m.state.ecodes {
		if e.LoginID == loginID {
			return &e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r memECodes) Delete(ctx context.Context, id int64) error {
	defer r.m.lock(ctx)()
	st := &r.m.state
	if _, ok := st.ecodes[id]; !ok {
		return models.ErrNotFound
	}
	if _, ok := st.nonces[id]; ok {
		return fmt.Errorf("ecode delete: nonce still references ecode %d", id)
	}
	delete(st.ecodes, id)
	return nil
}

type memNonces struct{ m *MemoryManager }

func (r memNonces) Create(ctx context.Context, ecodeID int64, secret string, expiresAt time.Time) (*models.Nonce, error) {
	defer r.m.lock(ctx)()
	st := &r.m.state
	if _, ok := st.ecodes[ecodeID]; !ok {
		return nil, fmt.Errorf("nonce create: ecode %d does not exist", ecodeID)
	}
	for _, n := range st.nonces {
		if n.SecretCode == secret {
			return nil, models.ErrConflict
		}
	}
	if _, ok := st.nonces[ecodeID]; ok {
		return nil, fmt.Errorf("nonce create: ecode %d already has a nonce", ecodeID)
	}
	n := models.Nonce{ECodeID: ecodeID, SecretCode: secret, ExpiresAt: expiresAt}
	st.nonces[ecodeID] = n
	return &n, nil
}

func (r memNonces) DeleteByECodeID(ctx context.Context, ecodeID int64) error {
	defer r.m.lock(ctx)()
	if _, ok := r.m.state.nonces[ecodeID]; !ok {
		return models.ErrNotFound
	}
	delete(r.m.state.nonces, ecodeID)
	return nil
}

type memComments struct{ m *MemoryManager }

func (r memComments) Create(ctx context.Context, c *models.Comment) error {
	defer r.m.lock(ctx)()
	st := &r.m.state
	if _, ok := st.logins[c.LoginID]; !ok {
		return fmt.Errorf("comment create: login %d does not exist", c.LoginID)
	}
	st.lastCommentID++
	c.ID = st.lastCommentID
	c.CreatedAt = r.m.now()
	st.comments = append(st.comments, *c)
	return nil
}
