package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/push"
	"github.com/appcuatri/backend/pkg/storage"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type memoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*auth.User

	failWith error
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{nextID: 1, users: map[int64]*auth.User{}}
}

func (s *memoryUserStore) clone(u *auth.User) *auth.User {
	cp := *u
	cp.FCMTokens = append([]string(nil), u.FCMTokens...)
	return &cp
}

func (s *memoryUserStore) CreateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return storage.ErrConflict
		}
	}
	user.ID = s.nextID
	s.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = s.clone(user)
	return nil
}

func (s *memoryUserStore) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.clone(u), nil
}

func (s *memoryUserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return s.clone(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryUserStore) GetUserByFirebaseUID(ctx context.Context, uid string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.FirebaseUID != nil && *u.FirebaseUID == uid {
			return s.clone(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryUserStore) GetUserByVerificationToken(ctx context.Context, token string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return s.clone(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memoryUserStore) ListUsers(ctx context.Context, opts httputil.PaginationOptions) ([]*auth.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*auth.User
	for _, u := range s.users {
		if opts.Activo != nil && u.Activo != *opts.Activo {
			continue
		}
		if opts.Search != "" {
			needle := strings.ToLower(opts.Search)
			if !strings.Contains(strings.ToLower(u.Nombre), needle) &&
				!strings.Contains(strings.ToLower(u.Apellido), needle) &&
				!strings.Contains(strings.ToLower(u.Email), needle) {
				continue
			}
		}
		matched = append(matched, s.clone(u))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := opts.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memoryUserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return storage.ErrNotFound
	}
	for id, other := range s.users {
		if id != user.ID && other.Email == user.Email {
			return storage.ErrConflict
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	s.users[user.ID] = s.clone(user)
	return nil
}

func (s *memoryUserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (s *memoryUserStore) MarkEmailVerified(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.EmailVerified = true
	u.VerificationToken = nil
	return nil
}

func (s *memoryUserStore) SetFCMTokens(ctx context.Context, id int64, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.FCMTokens = append([]string(nil), tokens...)
	return nil
}

func (s *memoryUserStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Activo = active
	return nil
}

func (s *memoryUserStore) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUserStore) UserStats(ctx context.Context) (*storage.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &storage.UserStats{}
	for _, u := range s.users {
		stats.Total++
		if u.Activo {
			stats.Activos++
		} else {
			stats.Inactivos++
		}
		if u.EmailVerified {
			stats.Verificados++
		}
	}
	return stats, nil
}

type memoryProductStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*storage.Product
}

func newMemoryProductStore() *memoryProductStore {
	return &memoryProductStore{nextID: 1, products: map[int64]*storage.Product{}}
}

func (s *memoryProductStore) CreateProduct(ctx context.Context, p *storage.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID
	s.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memoryProductStore) GetProductByID(ctx context.Context, id int64) (*storage.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryProductStore) ListProducts(ctx context.Context, opts httputil.PaginationOptions) ([]*storage.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*storage.Product
	for _, p := range s.products {
		if opts.Search != "" && !strings.Contains(strings.ToLower(p.Nombre), strings.ToLower(opts.Search)) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := opts.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memoryProductStore) UpdateProduct(ctx context.Context, p *storage.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return storage.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memoryProductStore) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *memoryProductStore) CountProducts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.products)), nil
}

type memoryFileStore struct {
	mu    sync.Mutex
	saved []*storage.StoredFile
	err   error
}

func (s *memoryFileStore) Save(ctx context.Context, filename, contentType string, content io.Reader) (*storage.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f := &storage.StoredFile{
		Filename:    filename,
		URL:         "/uploads/" + filename,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
	s.saved = append(s.saved, f)
	return f, nil
}

func (s *memoryFileStore) Delete(ctx context.Context, filename string) error { return nil }

type fakeSender struct {
	mu     sync.Mutex
	calls  [][]string
	result *push.Result
	err    error
}

func (f *fakeSender) SendToTokens(ctx context.Context, tokens []string, n push.Notification) (*push.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), tokens...))
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &push.Result{SuccessCount: len(tokens)}, nil
}

type testEnv struct {
	server   *Server
	users    *memoryUserStore
	products *memoryProductStore
	files    *memoryFileStore
	sender   *fakeSender
	tokens   *auth.TokenService
	hasher   *auth.PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    newMemoryUserStore(),
		products: newMemoryProductStore(),
		files:    &memoryFileStore{},
		sender:   &fakeSender{},
		tokens:   auth.NewTokenService([]byte(testJWTSecret), time.Hour),
		hasher:   auth.NewPasswordHasher(),
	}
	env.server = NewServer(Options{
		Logger:      observability.NewLogger(observability.ErrorLevel, io.Discard),
		Users:       env.users,
		Products:    env.products,
		Files:       env.files,
		Push:        env.sender,
		Tokens:      env.tokens,
		Hasher:      env.hasher,
		MaxFileSize: 1 << 20,
		MaxFiles:    5,
		CORSOrigins: []string{"*"},
	})
	return env
}

// seedUser inserts an active verified user and returns it with a valid
// session token.
func (e *testEnv) seedUser(t *testing.T, email, password string) (*auth.User, string) {
	t.Helper()
	hash, err := e.hasher.HashPassword(password)
	require.NoError(t, err)
	user := &auth.User{
		Email:         email,
		PasswordHash:  &hash,
		Nombre:        "Ana",
		Apellido:      "García",
		Activo:        true,
		EmailVerified: true,
		AuthProvider:  auth.ProviderLocal,
	}
	require.NoError(t, e.users.CreateUser(context.Background(), user))

	token, err := e.tokens.IssueToken(user.ID, user.Email)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Meta       *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"totalPages"`
	} `json:"meta"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
