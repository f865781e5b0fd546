package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"findit/internal/apispec"
	"findit/internal/app"
	"findit/pkg/domain"
	"findit/pkg/storage"
	"findit/pkg/store"
)

type stubNotifier struct {
	mu   sync.Mutex
	fail bool
	to   []string
}

func (n *stubNotifier) Send(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.to = append(n.to, to)
	return nil
}

func (n *stubNotifier) setFail(fail bool) {
	n.mu.Lock()
	n.fail = fail
	n.mu.Unlock()
}

func (n *stubNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.to...)
}

type testEnv struct {
	srv      *httptest.Server
	store    *store.MemoryStore
	notifier *stubNotifier
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	images, err := storage.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	st := store.NewMemoryStore()
	n := &stubNotifier{}
	core, err := app.New(app.Config{Store: st, Notifier: n, Images: images})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{App: core, Images: images}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, store: st, notifier: n}
}

func (e *testEnv) user(t *testing.T, email string, admin bool) domain.User {
	t.Helper()
	u := domain.User{Email: email, FullName: "Test " + email, PasswordHash: "x", IsAdmin: admin, CreatedAt: time.Now().UTC()}
	if err := e.store.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) concern(t *testing.T, owner domain.User, itemType domain.ItemType, status domain.Status) domain.Concern {
	t.Helper()
	c := domain.Concern{
		UserID: owner.ID, ItemName: "Backpack", Category: "bags", Location: "Library",
		Description: "green", ItemType: itemType, Status: status,
		Date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateConcern(context.Background(), &c); err != nil {
		t.Fatalf("create concern: %v", err)
	}
	return c
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing app to fail")
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, payload := env.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", resp.StatusCode, payload)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAdminRoutesApplyGuard(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, "admin@example.com", true)
	regular := env.user(t, "user@example.com", false)

	routes := []string{
		"/api/admin/dashboard-stats",
		"/api/admin/concerns",
		"/api/admin/concerns/pending",
		"/api/admin/items",
		"/api/admin/claims",
	}
	tests := []struct {
		name   string
		query  string
		header string
		want   int
	}{
		{name: "missing user id", want: http.StatusBadRequest},
		{name: "non numeric", query: "?user_id=abc", want: http.StatusBadRequest},
		{name: "unknown user", query: "?user_id=999", want: http.StatusNotFound},
		{name: "not admin", query: "?user_id=" + itoa(regular.ID), want: http.StatusForbidden},
		{name: "admin", query: "?user_id=" + itoa(admin.ID), want: http.StatusOK},
		{name: "admin via header", header: itoa(admin.ID), want: http.StatusOK},
	}
	for _, route := range routes {
		for _, tc := range tests {
			t.Run(route+"/"+tc.name, func(t *testing.T) {
				req, _ := http.NewRequest(http.MethodGet, env.srv.URL+route+tc.query, nil)
				if tc.header != "" {
					req.Header.Set("X-User-Id", tc.header)
				}
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					t.Fatalf("request: %v", err)
				}
				resp.Body.Close()
				if resp.StatusCode != tc.want {
					t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
				}
			})
		}
	}
}

func TestAdminGuardRunsBeforeBodyDecoding(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, func(cfg *Config) { cfg.Redis = client })
	admin := env.user(t, "admin@example.com", true)
	regular := env.user(t, "user@example.com", false)
	c := env.concern(t, regular, domain.ItemFound, domain.StatusPending)

	paths := []string{
		"/api/admin/concerns/" + itoa(c.ID) + "/status",
		"/api/admin/claims/1/status",
		"/api/admin/items/" + itoa(c.ID),
	}
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "missing user id", want: http.StatusBadRequest},
		{name: "not admin", query: "?user_id=" + itoa(regular.ID), want: http.StatusForbidden},
		{name: "admin gets body error", query: "?user_id=" + itoa(admin.ID), want: http.StatusBadRequest},
	}
	for _, path := range paths {
		for _, tc := range tests {
			t.Run(path+"/"+tc.name, func(t *testing.T) {
				req, _ := http.NewRequest(http.MethodPut, env.srv.URL+path+tc.query, strings.NewReader("{"))
				req.Header.Set("Content-Type", "application/json")
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					t.Fatalf("request: %v", err)
				}
				var payload map[string]any
				_ = json.NewDecoder(resp.Body).Decode(&payload)
				resp.Body.Close()
				if resp.StatusCode != tc.want {
					t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tc.want, payload)
				}
			})
		}
	}

	var failures int
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "findit:alerts:admin.authorize:fail:") {
			n, err := strconv.Atoi(mustGet(t, mr, key))
			if err != nil {
				t.Fatalf("counter %s: %v", key, err)
			}
			failures += n
		}
	}
	if failures != 2*len(paths) {
		t.Fatalf("guard failures counted = %d, want %d", failures, 2*len(paths))
	}
	got, _, _ := env.store.GetConcern(context.Background(), c.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("status changed to %q", got.Status)
	}
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v
}

func TestDecideConcernReportsEmailFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, "admin@example.com", true)
	reporter := env.user(t, "rep@example.com", false)
	c := env.concern(t, reporter, domain.ItemFound, domain.StatusPending)
	path := "/api/admin/concerns/" + itoa(c.ID) + "/status?user_id=" + itoa(admin.ID)

	resp, payload := env.do(t, http.MethodPut, path, map[string]string{"status": "approved"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decide expected 200, got %d %v", resp.StatusCode, payload)
	}
	if payload["emailSent"] != true || payload["message"] != "Concern marked as approved and email sent." {
		t.Fatalf("unexpected payload: %v", payload)
	}

	env.notifier.setFail(true)
	resp, payload = env.do(t, http.MethodPut, path, map[string]string{"status": "rejected"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("partial success expected 200, got %d", resp.StatusCode)
	}
	if payload["emailSent"] != false || payload["message"] != "Concern marked as rejected, but email failed." {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["emailError"]; !ok {
		t.Fatalf("expected emailError in payload: %v", payload)
	}
	got, _, _ := env.store.GetConcern(context.Background(), c.ID)
	if got.Status != domain.StatusRejected {
		t.Fatalf("status = %q, want rejected", got.Status)
	}

	resp, _ = env.do(t, http.MethodPut, path, map[string]string{"status": "maybe"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad decision expected 400, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPut, "/api/admin/concerns/999/status?user_id="+itoa(admin.ID), map[string]string{"status": "approved"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing concern expected 404, got %d", resp.StatusCode)
	}
}

func TestDecideClaimNotifiesBothParties(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, "admin@example.com", true)
	helper := env.user(t, "helper@example.com", false)
	claimer := env.user(t, "claimer@example.com", false)
	c := env.concern(t, helper, domain.ItemFound, domain.StatusApproved)

	resp, payload := env.do(t, http.MethodPost, "/api/claim-item", map[string]any{"concern_id": c.ID, "email": claimer.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim expected 200, got %d %v", resp.StatusCode, payload)
	}
	claim, _ := payload["claim"].(map[string]any)
	claimID, _ := claim["id"].(float64)

	path := "/api/admin/claims/" + strconv.Itoa(int(claimID)) + "/status?user_id=" + itoa(admin.ID)
	resp, payload = env.do(t, http.MethodPut, path, map[string]string{"status": "approved"})
	if resp.StatusCode != http.StatusOK || payload["emailSent"] != true {
		t.Fatalf("unexpected decision: %d %v", resp.StatusCode, payload)
	}
	if to := env.notifier.recipients(); len(to) != 2 || to[0] != claimer.Email || to[1] != helper.Email {
		t.Fatalf("unexpected recipients: %v", to)
	}
}

func TestClaimItem(t *testing.T) {
	env := newTestEnv(t, nil)
	helper := env.user(t, "helper@example.com", false)
	claimer := env.user(t, "claimer@example.com", false)
	c := env.concern(t, helper, domain.ItemFound, domain.StatusApproved)

	resp, _ := env.do(t, http.MethodPost, "/api/claim-item", map[string]any{"concern_id": itoa(c.ID), "email": claimer.Email})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first claim expected 200, got %d", resp.StatusCode)
	}
	resp, payload := env.do(t, http.MethodPost, "/api/claim-item", map[string]any{"concern_id": c.ID, "email": claimer.Email})
	if resp.StatusCode != http.StatusConflict || payload["error"] != "item already claimed" {
		t.Fatalf("duplicate claim expected 409, got %d %v", resp.StatusCode, payload)
	}

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "missing concern", body: map[string]any{"email": claimer.Email}, want: http.StatusBadRequest},
		{name: "null concern", body: map[string]any{"concern_id": nil, "email": claimer.Email}, want: http.StatusBadRequest},
		{name: "unknown concern", body: map[string]any{"concern_id": 999, "email": claimer.Email}, want: http.StatusNotFound},
		{name: "unknown user", body: map[string]any{"concern_id": c.ID, "email": "nobody@example.com"}, want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodPost, "/api/claim-item", tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}

	resp, payload = env.do(t, http.MethodGet, "/api/claimed-items?email="+claimer.Email, nil)
	items, _ := payload["items"].([]any)
	if resp.StatusCode != http.StatusOK || len(items) != 1 {
		t.Fatalf("claimed items: %d %v", resp.StatusCode, payload)
	}
}

func TestSignupAndSignin(t *testing.T) {
	env := newTestEnv(t, nil)
	body := map[string]string{"full_name": "Nia", "email": "Nia@Example.com", "password": "correct-horse"}

	resp, payload := env.do(t, http.MethodPost, "/api/signup", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup expected 200, got %d %v", resp.StatusCode, payload)
	}
	resp, payload = env.do(t, http.MethodPost, "/api/signup", body)
	if resp.StatusCode != http.StatusBadRequest || payload["error"] != "user already exists" {
		t.Fatalf("duplicate signup: %d %v", resp.StatusCode, payload)
	}

	resp, payload = env.do(t, http.MethodPost, "/api/signin", map[string]string{"email": "nia@example.com", "password": "correct-horse"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin expected 200, got %d %v", resp.StatusCode, payload)
	}
	user, _ := payload["user"].(map[string]any)
	if user["email"] != "nia@example.com" || user["is_admin"] != false {
		t.Fatalf("unexpected user: %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password must not be returned")
	}

	resp, _ = env.do(t, http.MethodPost, "/api/signin", map[string]string{"email": "nia@example.com", "password": "wrong-password"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password expected 401, got %d", resp.StatusCode)
	}
}

func TestSigninRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Redis = client
		cfg.SigninRateLimitPerMinute = 2
	})

	creds := map[string]string{"email": "x@example.com", "password": "whatever1"}
	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/signin", creds)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401, got %d", i+1, resp.StatusCode)
		}
	}
	resp, payload := env.do(t, http.MethodPost, "/api/signin", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %v", resp.StatusCode, payload)
	}
	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retry < 1 || retry > 60 {
		t.Fatalf("unexpected Retry-After %q", resp.Header.Get("Retry-After"))
	}

	// signup has its own budget
	resp, _ = env.do(t, http.MethodPost, "/api/signup", map[string]string{"full_name": "A", "email": "a@example.com", "password": "long-enough"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup expected 200, got %d", resp.StatusCode)
	}
}

func TestLostItems(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.user(t, "owner@example.com", false)
	env.concern(t, owner, domain.ItemLost, domain.StatusApproved)
	env.concern(t, owner, domain.ItemLost, domain.StatusPending)
	env.concern(t, owner, domain.ItemFound, domain.StatusApproved)

	resp, payload := env.do(t, http.MethodGet, "/api/lost-items?category=bags&sortBy=name_asc", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lost items expected 200, got %d %v", resp.StatusCode, payload)
	}
	items, _ := payload["items"].([]any)
	if len(items) != 1 || payload["page"] != float64(1) || payload["limit"] != float64(10) {
		t.Fatalf("unexpected page: %v", payload)
	}

	for _, q := range []string{
		url.Values{"sortBy": {"'; DROP TABLE concerns;--"}}.Encode(),
		"page=0",
		"limit=abc",
	} {
		resp, _ := env.do(t, http.MethodGet, "/api/lost-items?"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestRaiseConcernAndServeImage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.user(t, "rep@example.com", false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"email":       "rep@example.com",
		"item_name":   "Watch",
		"category":    "accessories",
		"date":        "2024-05-01",
		"location":    "Gym",
		"description": "silver",
		"itemType":    "lost",
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile("image", "watch.png")
	_, _ = part.Write([]byte("fake-png-bytes"))
	_ = mw.Close()

	resp, err := http.Post(env.srv.URL+"/api/raise-concern", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("raise concern: %v", err)
	}
	var created struct {
		Concern domain.Concern `json:"concern"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("raise concern expected 200, got %d", resp.StatusCode)
	}
	if created.Concern.Status != domain.StatusPending || !strings.HasPrefix(created.Concern.Image, storage.PathPrefix) {
		t.Fatalf("unexpected concern: %+v", created.Concern)
	}

	resp, err = http.Get(env.srv.URL + created.Concern.Image)
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(data) != "fake-png-bytes" {
		t.Fatalf("unexpected image response: %d %q", resp.StatusCode, data)
	}

	resp, err = http.Get(env.srv.URL + "/uploads/missing.png")
	if err != nil {
		t.Fatalf("get missing image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing image expected 404, got %d", resp.StatusCode)
	}

	resp, payload := env.do(t, http.MethodGet, "/api/my-items?email=rep@example.com", nil)
	items, _ := payload["items"].([]any)
	if resp.StatusCode != http.StatusOK || len(items) != 1 {
		t.Fatalf("my items: %d %v", resp.StatusCode, payload)
	}
}

func TestRaiseConcernRequiresImage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.user(t, "rep@example.com", false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("email", "rep@example.com")
	_ = mw.WriteField("item_name", "Watch")
	_ = mw.Close()
	resp, err := http.Post(env.srv.URL+"/api/raise-concern", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("raise concern: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

type presignOnlyStore struct{ storage.ImageStore }

func (presignOnlyStore) PresignGet(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://objects.example.com/findit/" + name + "?sig=abc", nil
}

func TestImageRedirectsToPresignedURL(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Images = presignOnlyStore{ImageStore: cfg.Images}
	})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(env.srv.URL + "/uploads/abc.png")
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://objects.example.com/findit/abc.png?sig=abc" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestUpdateAndDeleteOwnItem(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.user(t, "owner@example.com", false)
	c := env.concern(t, owner, domain.ItemLost, domain.StatusPending)

	update := map[string]string{
		"item_name": "Blue backpack", "category": "bags", "date": "2024-04-03",
		"location": "Cafeteria", "description": "zipper broken", "status": "approved",
	}
	resp, payload := env.do(t, http.MethodPut, "/api/update-item/"+itoa(c.ID), update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update expected 200, got %d %v", resp.StatusCode, payload)
	}
	got, _, _ := env.store.GetConcern(context.Background(), c.ID)
	if got.ItemName != "Blue backpack" || got.Status != domain.StatusPending {
		t.Fatalf("owner update must not change status: %+v", got)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/delete-item/"+itoa(c.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete expected 200, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/delete-item/"+itoa(c.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", resp.StatusCode)
	}
}

func TestRoutesMatchOpenAPI(t *testing.T) {
	images, err := storage.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	core, err := app.New(app.Config{Store: store.NewMemoryStore(), Images: images})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	s, err := New(Config{App: core, Images: images})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	doc, err := apispec.Load(filepath.Join("..", "..", apispec.DefaultPath))
	if err != nil {
		t.Fatalf("load openapi: %v", err)
	}
	if err := doc.Compare(s.Routes()); err != nil {
		t.Fatalf("openapi out of date: %v", err)
	}
}
