package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yatube/yatube/internal/auth"
	"github.com/yatube/yatube/internal/cache"
	"github.com/yatube/yatube/internal/db"
	"github.com/yatube/yatube/internal/events"
	"github.com/yatube/yatube/internal/storage"
	"github.com/yatube/yatube/internal/testutil"
	"github.com/yatube/yatube/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	t         *testing.T
	engine    *gin.Engine
	db        *db.DB
	repo      *db.Repository
	fx        *testutil.Fixtures
	pageCache *cache.PageCache
	events    *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database := testutil.NewDB(t)
	repo := db.NewRepository(database.DB)

	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	pageCache := cache.NewPageCache(store, "index_page", 20*time.Second)

	mediaRoot := t.TempDir()
	images, err := storage.NewLocalStore(mediaRoot)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	identity := auth.New(&config.AuthConfig{JWTSecret: testutil.JWTSecret}, db.NewUserRepository(repo))
	rec := &recordingPublisher{}

	router, err := NewRouter(Options{
		DB:        database,
		PageCache: pageCache,
		Identity:  identity,
		Images:    images,
		Events:    rec,
		LoginURL:  "/auth/login/",
		MediaRoot: mediaRoot,
		MediaURL:  "/media/",
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	engine := gin.New()
	router.SetupRoutes(engine)

	return &testEnv{
		t:         t,
		engine:    engine,
		db:        database,
		repo:      repo,
		fx:        testutil.NewFixtures(t, database.DB),
		pageCache: pageCache,
		events:    rec,
	}
}

// do sends a request, authenticated as username unless it is empty.
func (e *testEnv) do(method, target, username string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if username != "" {
		req.Header.Set("Authorization", "Bearer "+testutil.Token(e.t, username))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(target, username string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(http.MethodGet, target, username, nil, "")
}

func (e *testEnv) postForm(target, username string, values url.Values) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(http.MethodPost, target, username,
		strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302; body: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func articles(w *httptest.ResponseRecorder) int {
	return strings.Count(w.Body.String(), "<article>")
}

func TestIndex_CacheStaleness(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	author := e.fx.CreateUser("auth")
	post := e.fx.CreatePost(author, nil, "Пост, который удалят")

	first := e.get("/", "")
	if first.Code != http.StatusOK || !strings.Contains(first.Body.String(), "Пост, который удалят") {
		t.Fatalf("index did not render the post: %d", first.Code)
	}

	if err := db.NewPostRepository(e.repo).Delete(ctx, post.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	cached := e.get("/", "")
	if !bytes.Equal(cached.Body.Bytes(), first.Body.Bytes()) {
		t.Error("within the TTL the index must be byte-identical")
	}

	if err := e.pageCache.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	fresh := e.get("/", "")
	if bytes.Equal(fresh.Body.Bytes(), first.Body.Bytes()) {
		t.Error("after Clear the index must be re-rendered")
	}
	if strings.Contains(fresh.Body.String(), "Пост, который удалят") {
		t.Error("deleted post still listed after Clear")
	}
}

func TestIndex_Pagination(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	e.fx.CreatePosts(author, nil, 13)

	tests := []struct {
		target string
		want   int
	}{
		{"/", 10},
		{"/?page=1", 10},
		{"/?page=2", 3},
		{"/?page=99", 3},
		{"/?page=abc", 10},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := e.get(tt.target, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if got := articles(w); got != tt.want {
				t.Errorf("got %d posts, want %d", got, tt.want)
			}
		})
	}
}

func TestGroupPosts(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	group := e.fx.CreateGroup("Тестовая группа", "test-slug")
	other := e.fx.CreateGroup("Другая группа", "other")
	e.fx.CreatePost(author, group, "в группе")
	e.fx.CreatePost(author, other, "в другой группе")
	e.fx.CreatePost(author, nil, "без группы")

	w := e.get("/group/test-slug/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h1>Тестовая группа</h1>") || !strings.Contains(body, "Тестовое описание") {
		t.Error("group metadata missing")
	}
	if articles(w) != 1 || !strings.Contains(body, "в группе") || strings.Contains(body, "в другой группе") {
		t.Errorf("group page lists foreign posts")
	}

	if w := e.get("/group/missing/", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown slug status = %d, want 404", w.Code)
	}
}

func TestProfile(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	reader := e.fx.CreateUser("reader")
	e.fx.CreatePosts(author, nil, 2)
	e.fx.CreatePost(reader, nil, "чужой")

	w := e.get("/profile/auth/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Всего постов: 2") || articles(w) != 2 {
		t.Errorf("profile shows wrong posts")
	}
	if strings.Contains(w.Body.String(), "Подписаться") {
		t.Error("anonymous viewer should not get a follow button")
	}

	if w := e.get("/profile/auth/", "reader"); !strings.Contains(w.Body.String(), "Подписаться") {
		t.Error("expected follow button for non-follower")
	}
	e.fx.Follow(reader, author)
	if w := e.get("/profile/auth/", "reader"); !strings.Contains(w.Body.String(), "Отписаться") {
		t.Error("expected unfollow button for follower")
	}
	if w := e.get("/profile/auth/", "auth"); strings.Contains(w.Body.String(), "Подписаться") {
		t.Error("author should not be offered to follow themselves")
	}

	if w := e.get("/profile/nobody/", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", w.Code)
	}
}

func TestPostDetail(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	reader := e.fx.CreateUser("reader")
	post := e.fx.CreatePost(author, nil, "Тестовый пост")
	e.fx.CreatePost(author, nil, "второй")
	e.fx.CreateComment(post, reader, "Тестовый комментарий")

	w := e.get(detailURL(post.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Тестовый пост", "Тестовый комментарий", "<span>2</span>"} {
		if !strings.Contains(body, want) {
			t.Errorf("detail page missing %q", want)
		}
	}
	if strings.Contains(body, "редактировать запись") {
		t.Error("anonymous viewer should not get the edit link")
	}
	if w := e.get(detailURL(post.ID), "auth"); !strings.Contains(w.Body.String(), "редактировать запись") {
		t.Error("author should get the edit link")
	}

	for _, target := range []string{"/posts/9999/", "/posts/abc/"} {
		if w := e.get(target, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, w.Code)
		}
	}
}

func TestPostCreate(t *testing.T) {
	e := newTestEnv(t)
	group := e.fx.CreateGroup("Тестовая группа", "test-slug")

	w := e.get("/create/", "auth")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Тестовая группа") {
		t.Fatalf("create form: %d", w.Code)
	}

	w = e.postForm("/create/", "auth", url.Values{
		"text":  {"Тестовый текст"},
		"group": {strconv.FormatInt(group.ID, 10)},
	})
	assertRedirect(t, w, "/profile/auth/")

	profile := e.get("/profile/auth/", "")
	if !strings.Contains(profile.Body.String(), "Тестовый текст") {
		t.Error("new post missing from the author's profile")
	}
	if e.fx.CountPosts() != 1 {
		t.Errorf("post count = %d, want 1", e.fx.CountPosts())
	}

	posts, _ := db.NewPostRepository(e.repo).ListAll().All(context.Background())
	if posts[0].GroupID == nil || *posts[0].GroupID != group.ID {
		t.Error("group not saved")
	}
	if got := e.events.types(); len(got) != 1 || got[0] != events.PostCreated {
		t.Errorf("events = %v", got)
	}
}

func TestPostCreate_Invalid(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{"blank text", url.Values{"text": {"   "}}, "This field is required."},
		{"unknown group", url.Values{"text": {"текст"}, "group": {"42"}}, "Select a valid choice."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.postForm("/create/", "auth", tt.values)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("form error %q not shown", tt.want)
			}
		})
	}
	if e.fx.CountPosts() != 0 {
		t.Error("invalid form created a post")
	}
}

func TestPostCreate_WithImage(t *testing.T) {
	e := newTestEnv(t)

	gif := []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
		0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
		0x0A, 0x00, 0x3B,
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("text", "С картинкой")
	fw, _ := mw.CreateFormFile("image", "small.gif")
	_, _ = fw.Write(gif)
	_ = mw.Close()

	w := e.do(http.MethodPost, "/create/", "auth", &buf, mw.FormDataContentType())
	assertRedirect(t, w, "/profile/auth/")

	posts, _ := db.NewPostRepository(e.repo).ListAll().All(context.Background())
	if len(posts) != 1 || !strings.HasPrefix(posts[0].Image, "posts/") {
		t.Fatalf("image not stored: %+v", posts)
	}

	if w := e.get("/media/"+posts[0].Image, ""); w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), gif) {
		t.Errorf("media not served: %d", w.Code)
	}
	if w := e.get("/", ""); !strings.Contains(w.Body.String(), `src="/media/`+posts[0].Image) {
		t.Error("index does not show the image")
	}
}

func TestLoginRequired(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	post := e.fx.CreatePost(author, nil, "текст")

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/create/"},
		{http.MethodPost, "/create/"},
		{http.MethodGet, "/follow/"},
		{http.MethodGet, "/profile/auth/follow/"},
		{http.MethodGet, "/profile/auth/unfollow/"},
		{http.MethodPost, detailURL(post.ID) + "comment/"},
		{http.MethodGet, detailURL(post.ID) + "edit/"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := e.do(tt.method, tt.target, "", nil, "")
			assertRedirect(t, w, "/auth/login/?next="+url.QueryEscape(tt.target))
		})
	}
}

func TestPostEdit_Anonymous(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	post := e.fx.CreatePost(author, nil, "исходный текст")
	target := detailURL(post.ID) + "edit/"

	w := e.postForm(target, "", url.Values{"text": {"взлом"}})
	assertRedirect(t, w, "/auth/login/?next="+url.QueryEscape(target))

	if got := e.fx.ReloadPost(post.ID); got.Text != "исходный текст" {
		t.Errorf("anonymous edit changed the post to %q", got.Text)
	}
}

func TestPostEdit_NonAuthor(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	e.fx.CreateUser("reader")
	post := e.fx.CreatePost(author, nil, "исходный текст")
	target := detailURL(post.ID) + "edit/"

	assertRedirect(t, e.get(target, "reader"), detailURL(post.ID))

	w := e.postForm(target, "reader", url.Values{"text": {"чужая правка"}})
	assertRedirect(t, w, detailURL(post.ID))

	if got := e.fx.ReloadPost(post.ID); got.Text != "исходный текст" {
		t.Errorf("non-author edit changed the post to %q", got.Text)
	}
	if len(e.events.types()) != 0 {
		t.Error("rejected edit published an event")
	}
}

func TestPostEdit_Author(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	group := e.fx.CreateGroup("Тестовая группа", "test-slug")
	post := e.fx.CreatePost(author, group, "исходный текст")
	before := e.fx.ReloadPost(post.ID)
	target := detailURL(post.ID) + "edit/"

	w := e.get(target, "auth")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "исходный текст") {
		t.Fatalf("edit form not prefilled: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "selected") {
		t.Error("current group not selected")
	}

	if w := e.postForm(target, "auth", url.Values{"text": {""}}); w.Code != http.StatusOK {
		t.Errorf("invalid edit status = %d, want 200", w.Code)
	}

	w = e.postForm(target, "auth", url.Values{"text": {"новый текст"}})
	assertRedirect(t, w, detailURL(post.ID))

	after := e.fx.ReloadPost(post.ID)
	if after.Text != "новый текст" || after.GroupID != nil {
		t.Errorf("edit not applied: %+v", after)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("edit changed created_at")
	}
	if got := e.events.types(); len(got) != 1 || got[0] != events.PostUpdated {
		t.Errorf("events = %v", got)
	}
}

func TestAddComment(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	post := e.fx.CreatePost(author, nil, "текст")
	target := detailURL(post.ID) + "comment/"
	comments := db.NewCommentRepository(e.repo)

	assertRedirect(t, e.postForm(target, "reader", url.Values{"text": {"Тестовый комментарий"}}), detailURL(post.ID))
	assertRedirect(t, e.postForm(target, "reader", url.Values{"text": {"  "}}), detailURL(post.ID))

	got, err := comments.ListByPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("ListByPost: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Тестовый комментарий" || got[0].Author.Username != "reader" {
		t.Errorf("comments = %+v", got)
	}
	if w := e.get(detailURL(post.ID), ""); !strings.Contains(w.Body.String(), "Тестовый комментарий") {
		t.Error("comment not shown on the post page")
	}

	if w := e.postForm("/posts/9999/comment/", "reader", url.Values{"text": {"x"}}); w.Code != http.StatusNotFound {
		t.Errorf("comment on missing post status = %d, want 404", w.Code)
	}
}

func TestFollowFeed(t *testing.T) {
	e := newTestEnv(t)
	author := e.fx.CreateUser("auth")
	e.fx.CreateUser("follower")
	e.fx.CreateUser("stranger")

	assertRedirect(t, e.get("/profile/auth/follow/", "follower"), "/profile/auth/")
	e.fx.CreatePost(author, nil, "Пост для подписчиков")

	w := e.get("/follow/", "follower")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if articles(w) != 1 || !strings.Contains(w.Body.String(), "Пост для подписчиков") {
		t.Errorf("follower feed has %d posts, want 1", articles(w))
	}

	if w := e.get("/follow/", "stranger"); articles(w) != 0 {
		t.Errorf("non-follower feed has %d posts, want 0", articles(w))
	}
}

func TestFollow_IdempotentAndSelf(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	author := e.fx.CreateUser("auth")
	reader := e.fx.CreateUser("reader")
	follows := db.NewFollowRepository(e.repo)

	assertRedirect(t, e.get("/profile/auth/follow/", "reader"), "/profile/auth/")
	assertRedirect(t, e.get("/profile/auth/follow/", "reader"), "/profile/auth/")
	if n, _ := follows.Count(ctx); n != 1 {
		t.Errorf("edges after repeated follow = %d, want 1", n)
	}

	assertRedirect(t, e.get("/profile/reader/follow/", "reader"), "/profile/reader/")
	if ok, _ := follows.Exists(ctx, reader.ID, reader.ID); ok {
		t.Error("self-follow created an edge")
	}

	assertRedirect(t, e.get("/profile/auth/unfollow/", "reader"), "/profile/auth/")
	assertRedirect(t, e.get("/profile/auth/unfollow/", "reader"), "/profile/auth/")
	if ok, _ := follows.Exists(ctx, reader.ID, author.ID); ok {
		t.Error("edge survived unfollow")
	}

	want := []string{events.FollowCreated, events.FollowDeleted}
	if got := e.events.types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}

	if w := e.get("/profile/nobody/follow/", "reader"); w.Code != http.StatusNotFound {
		t.Errorf("follow unknown user status = %d, want 404", w.Code)
	}
}

func TestNotFoundPage(t *testing.T) {
	e := newTestEnv(t)
	w := e.get("/unexisting_page/", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Custom 404") {
		t.Error("custom 404 template not used")
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.get("/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"OK"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}
