package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/hedgey/internal/desktop"
	"github.com/starford/hedgey/internal/registry"
	"github.com/starford/hedgey/internal/testutil"
	"github.com/starford/hedgey/internal/vfs"
	"github.com/starford/hedgey/internal/wm"
)

// testEnv sets up a temp database, session and router for testing.
// A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (*desktop.Session, http.Handler) {
	t.Helper()

	_, downloads := testutil.TestStore(t)
	sess := testutil.TestSession(t,
		desktop.WithDownloads(downloads),
		desktop.WithApps([]registry.App{{ID: "about", Title: "About", URL: "about.html"}}),
	)

	return sess, NewRouter(sess, authToken != "", authToken)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func openWindow(t *testing.T, router http.Handler, kind string) Window {
	t.Helper()
	w := do(t, router, http.MethodPost, "/windows", OpenWindowRequest{Kind: kind})
	if w.Code != http.StatusCreated {
		t.Fatalf("open %s = %d, body = %s", kind, w.Code, w.Body.String())
	}
	return decode[Window](t, w)
}

func TestOpenAndListWindows(t *testing.T) {
	_, router := testEnv(t, "")

	first := openWindow(t, router, "files")
	second := openWindow(t, router, "browser")
	if first.ID == second.ID {
		t.Fatalf("duplicate id %q", first.ID)
	}
	if second.Title != "Browser" {
		t.Errorf("title = %q", second.Title)
	}

	w := do(t, router, http.MethodGet, "/windows", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[WindowListResponse](t, w)
	if len(list.Windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(list.Windows))
	}
	if list.Windows[0].ID != second.ID || list.Active != second.ID {
		t.Errorf("topmost = %q active = %q, want %q", list.Windows[0].ID, list.Active, second.ID)
	}
}

func TestOpenWindow_MissingKind(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/windows", OpenWindowRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWindowActions(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "files")
	base := "/windows/" + win.ID

	w := do(t, router, http.MethodPost, base+"/minimize", nil)
	if got := decode[Window](t, w); !got.Minimized {
		t.Error("minimize did not minimize")
	}
	w = do(t, router, http.MethodPost, base+"/reveal", nil)
	if got := decode[Window](t, w); got.Minimized || !got.Active {
		t.Errorf("reveal: minimized=%v active=%v", got.Minimized, got.Active)
	}
	w = do(t, router, http.MethodPost, base+"/zoom", nil)
	zoomed := decode[Window](t, w)
	if !zoomed.Maximized || zoomed.RestoreRect == nil {
		t.Fatalf("zoom: maximized=%v restore=%v", zoomed.Maximized, zoomed.RestoreRect)
	}
	w = do(t, router, http.MethodPost, base+"/zoom", nil)
	if got := decode[Window](t, w); got.Maximized || got.Rect != *zoomed.RestoreRect {
		t.Errorf("unzoom rect = %+v, want %+v", got.Rect, *zoomed.RestoreRect)
	}

	w = do(t, router, http.MethodPost, base+"/close", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, base, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("closed window = %d, want 404", w.Code)
	}
}

func TestWindowAction_Unknown(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "files")

	w := do(t, router, http.MethodPost, "/windows/"+win.ID+"/explode", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/windows/w999/focus", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing window = %d, want 404", w.Code)
	}
}

func TestDragGesture(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "files")
	path := "/windows/" + win.ID + "/drag"

	w := do(t, router, http.MethodPost, path, GestureRequest{Phase: PhaseBegin, X: 100, Y: 100})
	if w.Code != http.StatusOK {
		t.Fatalf("begin = %d, body = %s", w.Code, w.Body.String())
	}
	do(t, router, http.MethodPost, path, GestureRequest{Phase: PhaseMove, X: 150, Y: 130})
	w = do(t, router, http.MethodPost, path, GestureRequest{Phase: PhaseEnd})
	got := decode[Window](t, w)
	if got.Rect.Left != win.Rect.Left+50 || got.Rect.Top != win.Rect.Top+30 {
		t.Errorf("rect = %+v, want moved by (50,30) from %+v", got.Rect, win.Rect)
	}
	if got.Tilt != 0 {
		t.Errorf("tilt after end = %v", got.Tilt)
	}
}

func TestDragGesture_RefusedOnControl(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "files")

	w := do(t, router, http.MethodPost, "/windows/"+win.ID+"/drag",
		GestureRequest{Phase: PhaseBegin, X: 10, Y: 10, OnControl: true})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestWindowAt(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "notes")
	x, y := win.Rect.Left+5, win.Rect.Top+5

	w := do(t, router, http.MethodGet, "/windows/at?x="+itoa(x)+"&y="+itoa(y)+"&kind=notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[Window](t, w); got.ID != win.ID {
		t.Errorf("id = %q, want %q", got.ID, win.ID)
	}

	w = do(t, router, http.MethodGet, "/windows/at?x="+itoa(x)+"&y="+itoa(y)+"&kind=files", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("wrong kind = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodGet, "/windows/at", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing coords = %d, want 400", w.Code)
	}
}

func TestPutDesktop(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/desktop", DesktopSize{Width: 1600, Height: 900})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[DesktopSize](t, w); got.Width != 1600 || got.Height != 900 {
		t.Errorf("size = %+v", got)
	}
	w = do(t, router, http.MethodPut, "/desktop", DesktopSize{Width: 0, Height: 900})
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero width = %d, want 400", w.Code)
	}
}

func TestOpenWindowsMenu(t *testing.T) {
	_, router := testEnv(t, "")
	a := openWindow(t, router, "files")
	b := openWindow(t, router, "notes")
	do(t, router, http.MethodPost, "/windows/"+a.ID+"/minimize", nil)

	w := do(t, router, http.MethodGet, "/menu/windows", nil)
	entries := decode[[]struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}](t, w)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != b.ID {
		t.Errorf("first entry = %q, want %q", entries[0].ID, b.ID)
	}
	if !strings.HasPrefix(entries[1].Label, "◊ ") {
		t.Errorf("minimized label = %q", entries[1].Label)
	}
}

func TestMenuDispatch(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/menu", desktop.Request{Action: desktop.ActionAboutSystem})
	if w.Code != http.StatusCreated {
		t.Fatalf("about = %d, body = %s", w.Code, w.Body.String())
	}
	opened := decode[OpenedResponse](t, w)
	w = do(t, router, http.MethodGet, "/windows/"+opened.ID, nil)
	if got := decode[Window](t, w); got.Title != "About" {
		t.Errorf("title = %q", got.Title)
	}

	w = do(t, router, http.MethodPost, "/menu", desktop.Request{App: "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown app = %d, want 404", w.Code)
	}
}

func TestSaveNoteAndReadText(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", vfs.NoteInput{Name: "todo", Content: "milk"})
	if w.Code != http.StatusCreated {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	rec := decode[Record](t, w)
	if !rec.Enc || rec.Kind != "note" {
		t.Errorf("record = %+v", rec)
	}

	w = do(t, router, http.MethodGet, "/notes/"+rec.ID+"/text", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("text = %d", w.Code)
	}
	if got := decode[NoteTextResponse](t, w); got.Text != "milk" {
		t.Errorf("text = %q", got.Text)
	}

	// Same name again gets a unique name.
	w = do(t, router, http.MethodPost, "/notes", vfs.NoteInput{Name: "todo", Content: "eggs"})
	if got := decode[Record](t, w); got.Name == rec.Name {
		t.Errorf("duplicate name %q", got.Name)
	}

	w = do(t, router, http.MethodGet, "/files?kind=note", nil)
	if got := decode[FileListResponse](t, w); len(got.Files) != 2 {
		t.Errorf("notes = %d, want 2", len(got.Files))
	}
}

func TestSaveNote_EmptyName(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", vfs.NoteInput{Name: "  ", Content: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNoteText_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/nmissing/text", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadDownloadDelete(t *testing.T) {
	sess, router := testEnv(t, "")
	content := []byte("\x00binary\xffdata")

	w := uploadFile(t, router, "blob.bin", content)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[UploadResponse](t, w); got.Count != 1 {
		t.Errorf("count = %d", got.Count)
	}
	if len(sess.Manager().Windows()) != 1 {
		t.Errorf("documents window not revealed")
	}

	w = do(t, router, http.MethodGet, "/files?kind=file", nil)
	files := decode[FileListResponse](t, w).Files
	if len(files) != 1 || files[0].Name != "blob.bin" {
		t.Fatalf("files = %+v", files)
	}
	id := files[0].ID

	w = do(t, router, http.MethodGet, "/files/"+id+"/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Errorf("downloaded %q, want %q", w.Body.Bytes(), content)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("disposition = %q", cd)
	}

	w = do(t, router, http.MethodPost, "/files/"+id+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodDelete, "/files/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/files/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted get = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/files/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestNavigateBrowser(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "browser")

	w := do(t, router, http.MethodPost, "/windows/"+win.ID+"/navigate",
		NavigateRequest{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	if w.Code != http.StatusOK {
		t.Fatalf("navigate = %d, body = %s", w.Code, w.Body.String())
	}
	var got struct {
		Status  string `json:"status"`
		Content struct {
			Src string `json:"src"`
		} `json:"content"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Content.Src, "dQw4w9WgXcQ") {
		t.Errorf("src = %q", got.Content.Src)
	}
	if !strings.HasPrefix(got.Status, "Embedded via") {
		t.Errorf("status = %q", got.Status)
	}

	w = do(t, router, http.MethodPost, "/windows/"+win.ID+"/save-app", SaveAppRequest{Name: "Video"})
	if got := decode[SavedAppResponse](t, w); !got.Added {
		t.Error("save-app did not add")
	}
	w = do(t, router, http.MethodGet, "/apps/saved", nil)
	if saved := decode[[]registry.SavedApp](t, w); len(saved) != 1 || saved[0].Name != "Video" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestNavigate_WrongContent(t *testing.T) {
	_, router := testEnv(t, "")
	win := openWindow(t, router, "files")

	w := do(t, router, http.MethodPost, "/windows/"+win.ID+"/navigate", NavigateRequest{URL: "example.com"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	w = do(t, router, http.MethodPost, "/windows/w42/navigate", NavigateRequest{URL: "example.com"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing window = %d, want 404", w.Code)
	}
}

func TestKeysFlow(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/keys/passphrase", PassphraseRequest{Passphrase: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty passphrase = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/keys/passphrase", PassphraseRequest{Passphrase: "hunter2"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("set passphrase = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/keys", nil)
	if st := decode[KeyStatus](t, w); !st.HasKey || !st.Wrapped || !st.Unlocked {
		t.Errorf("status = %+v", st)
	}

	do(t, router, http.MethodPost, "/keys/lock", nil)
	w = do(t, router, http.MethodGet, "/keys", nil)
	if st := decode[KeyStatus](t, w); st.Unlocked {
		t.Error("still unlocked after lock")
	}

	w = do(t, router, http.MethodPost, "/keys/unlock", PassphraseRequest{Passphrase: "wrong"})
	if got := decode[UnlockResponse](t, w); got.Unlocked {
		t.Error("wrong passphrase unlocked")
	}
	w = do(t, router, http.MethodPost, "/keys/unlock", PassphraseRequest{Passphrase: "hunter2"})
	if got := decode[UnlockResponse](t, w); !got.Unlocked {
		t.Error("right passphrase did not unlock")
	}
}

func TestTheme(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/theme", nil)
	if got := decode[ThemeResponse](t, w); got.Theme != registry.DefaultTheme || got.Dark || len(got.Themes) == 0 {
		t.Errorf("default = %+v", got)
	}

	dark := true
	w = do(t, router, http.MethodPut, "/theme", ThemeRequest{Theme: "system7", Dark: &dark})
	if got := decode[ThemeResponse](t, w); got.Theme != "system7" || !got.Dark {
		t.Errorf("after put = %+v", got)
	}

	w = do(t, router, http.MethodPut, "/theme", ThemeRequest{Theme: "vaporwave"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown theme = %d, want 404", w.Code)
	}
}

func TestApps(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/apps/saved", SavedAppRequest{Name: "Radio", URL: "radio.example.com"})
	if got := decode[SavedAppResponse](t, w); !got.Added {
		t.Error("not added")
	}
	w = do(t, router, http.MethodPost, "/apps/saved", SavedAppRequest{Name: "", URL: "x.example.com"})
	if got := decode[SavedAppResponse](t, w); got.Added {
		t.Error("blank name added")
	}

	w = do(t, router, http.MethodGet, "/apps", nil)
	got := decode[AppsResponse](t, w)
	if len(got.Catalogue) != 1 || got.Catalogue[0].ID != "about" {
		t.Errorf("catalogue = %+v", got.Catalogue)
	}
	if len(got.Saved) != 1 || got.Saved[0].URL != "https://radio.example.com" {
		t.Errorf("saved = %+v", got.Saved)
	}
}

func TestTags(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/tags", map[string][]string{"work": {"n1", "n2"}, " ": {"n3"}, "empty": {}})
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/tags", nil)
	tags := decode[map[string][]string](t, w)
	if len(tags) != 1 || len(tags["work"]) != 2 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/windows", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/windows", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/windows", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnv(t, "tok")

	// The stream blocks until the request context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func itoa(n int) string {
	data, _ := json.Marshal(n)
	return string(data)
}

func TestApplyThemeWindow(t *testing.T) {
	_, router := testEnv(t, "")
	panel := openWindow(t, router, "themes")
	other := openWindow(t, router, "themes")

	w := do(t, router, http.MethodPost, "/windows/"+panel.ID+"/theme", ThemeRequest{Theme: "beos"})
	if w.Code != http.StatusOK {
		t.Fatalf("apply = %d, body = %s", w.Code, w.Body.String())
	}
	var got struct {
		Status  string `json:"status"`
		Content struct {
			Selected string `json:"selected"`
			Label    string `json:"label"`
		} `json:"content"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Content.Selected != "beos" || got.Content.Label != "BeOS" {
		t.Errorf("content = %+v", got.Content)
	}
	if !strings.HasPrefix(got.Status, "BeOS: ") {
		t.Errorf("status = %q", got.Status)
	}

	w = do(t, router, http.MethodGet, "/theme", nil)
	if th := decode[ThemeResponse](t, w); th.Theme != "beos" {
		t.Errorf("theme = %q, want beos", th.Theme)
	}
	w = do(t, router, http.MethodGet, "/windows/"+other.ID, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Content.Selected != "beos" {
		t.Errorf("second panel shows %q", got.Content.Selected)
	}

	w = do(t, router, http.MethodPost, "/windows/"+panel.ID+"/theme", ThemeRequest{Theme: "vaporwave"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown theme = %d, want 404", w.Code)
	}
	files := openWindow(t, router, "files")
	w = do(t, router, http.MethodPost, "/windows/"+files.ID+"/theme", ThemeRequest{Theme: "beos"})
	if w.Code != http.StatusConflict {
		t.Errorf("files window = %d, want 409", w.Code)
	}
}

func TestPutTheme_RefreshesThemesWindows(t *testing.T) {
	_, router := testEnv(t, "")
	panel := openWindow(t, router, "themes")

	do(t, router, http.MethodPut, "/theme", ThemeRequest{Theme: "system7"})

	w := do(t, router, http.MethodGet, "/windows/"+panel.ID, nil)
	var got struct {
		Content struct {
			Selected string `json:"selected"`
		} `json:"content"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Content.Selected != "system7" {
		t.Errorf("panel shows %q, want system7", got.Content.Selected)
	}
}

func TestSelectFile(t *testing.T) {
	_, router := testEnv(t, "")
	if w := uploadFile(t, router, "pic.png", []byte("png")); w.Code != http.StatusCreated {
		t.Fatalf("upload = %d", w.Code)
	}
	w := do(t, router, http.MethodGet, "/files?kind=file", nil)
	id := decode[FileListResponse](t, w).Files[0].ID

	wins := decode[WindowListResponse](t, do(t, router, http.MethodGet, "/windows", nil)).Windows
	if len(wins) != 1 {
		t.Fatalf("windows = %d, want the documents window", len(wins))
	}
	win := wins[0]

	w = do(t, router, http.MethodPost, "/windows/"+win.ID+"/select", SelectRequest{ID: id})
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d, body = %s", w.Code, w.Body.String())
	}
	var got struct {
		Status  string `json:"status"`
		Content struct {
			Selected string `json:"selected"`
		} `json:"content"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Content.Selected != id || got.Status != "Selected: pic.png" {
		t.Errorf("got %+v", got)
	}

	w = do(t, router, http.MethodPost, "/windows/"+win.ID+"/select", SelectRequest{ID: "fmissing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown row = %d, want 404", w.Code)
	}
}

func TestFlushNotesWindow(t *testing.T) {
	sess, router := testEnv(t, "")
	win := openWindow(t, router, "notes")
	c, ok := sess.Manager().ContentOf(win.ID)
	if !ok {
		t.Fatal("no content")
	}
	select {
	case <-c.(*wm.Notes).Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("notes never loaded")
	}

	w := do(t, router, http.MethodPut, "/windows/"+win.ID+"/text", TextRequest{Text: "remember the milk"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/windows/"+win.ID+"/flush", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("flush = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/files?kind=note", nil)
	notes := decode[FileListResponse](t, w).Files
	if len(notes) != 1 {
		t.Fatalf("notes = %+v", notes)
	}
	w = do(t, router, http.MethodGet, "/notes/"+notes[0].ID+"/text", nil)
	if got := decode[NoteTextResponse](t, w); got.Text != "remember the milk" {
		t.Errorf("text = %q", got.Text)
	}

	browser := openWindow(t, router, "browser")
	w = do(t, router, http.MethodPost, "/windows/"+browser.ID+"/flush", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("browser flush = %d, want 409", w.Code)
	}
}
