package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"courseware/internal/domain/models"
	"courseware/internal/domain/models/library"
	"courseware/internal/domain/services"
	librarySvc "courseware/internal/domain/services/library"
	"courseware/internal/filetypes"
	"courseware/internal/httputil"
	"courseware/internal/repository/memory"
	authSvc "courseware/internal/service/auth"
	libraryService "courseware/internal/service/library"
	storage "courseware/internal/storage/memory"
)

var (
	admin   = models.Caller{UserID: "admin-1", Role: models.RoleAdmin}
	trainee = models.Caller{UserID: "t1", Role: models.RoleTrainee}
	course  = library.Scope{CourseID: "c1"}
)

type testEnv struct {
	nodes   *NodeHandler
	trees   *TreeHandler
	service librarySvc.NodeService
	content *storage.ContentStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry, err := filetypes.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	content := storage.NewContentStore("https://cdn.test")
	quota := storage.NewQuotaManager(1 << 20)

	core := libraryService.NewCore(
		memory.NewNodeRepository(),
		libraryService.NewScopeLocker(),
		authSvc.NewRoleBasedAuthorizer(),
		libraryService.DefaultOptions(),
		logger,
	)
	nodeService := libraryService.NewNodeService(core, registry, content, quota)

	return &testEnv{
		nodes: NewNodeHandler(
			nodeService,
			libraryService.NewCopyService(core, quota),
			libraryService.NewMoveService(core),
			logger,
		),
		trees:   NewTreeHandler(libraryService.NewTreeService(core), logger),
		service: nodeService,
		content: content,
	}
}

// call invokes h the way the router would, with the caller already authenticated
func call(t *testing.T, h http.HandlerFunc, caller *models.Caller, method, target string, body any, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	if target == "" {
		target = "/"
	}
	r := httptest.NewRequest(method, target, reader)
	for k, v := range params {
		r.SetPathValue(k, v)
	}
	if caller != nil {
		r = httputil.WithCaller(r, *caller)
	}

	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) create(t *testing.T, caller models.Caller, req librarySvc.CreateNodeRequest) library.Node {
	t.Helper()
	rec := call(t, e.nodes.CreateNode, &caller, http.MethodPost, "/api/nodes", req, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d: %s", req.Name, rec.Code, rec.Body.String())
	}
	return decode[library.Node](t, rec)
}

func idParam(nodeID string) map[string]string {
	return map[string]string{"id": nodeID}
}

func TestCreateNode(t *testing.T) {
	e := newTestEnv(t)
	scope := course

	folder := e.create(t, admin, librarySvc.CreateNodeRequest{Scope: &scope, Name: "Week 1", Kind: library.KindFolder})
	if folder.Path != "root/Week 1" || folder.Scope != course {
		t.Errorf("folder = %+v", folder)
	}

	file := e.create(t, admin, librarySvc.CreateNodeRequest{ParentID: folder.ID, Name: "notes.pdf", Kind: library.KindFile, SizeBytes: 10})
	if file.FileType != library.FileTypePDF {
		t.Errorf("FileType = %q, want pdf", file.FileType)
	}

	t.Run("duplicate returns existing with 409", func(t *testing.T) {
		rec := call(t, e.nodes.CreateNode, &admin, http.MethodPost, "/api/nodes",
			librarySvc.CreateNodeRequest{ParentID: folder.ID, Name: "NOTES.pdf", Kind: library.KindFile}, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if got := decode[library.Node](t, rec); got.ID != file.ID {
			t.Errorf("existing = %s, want %s", got.ID, file.ID)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := call(t, e.nodes.GetNode, &trainee, http.MethodGet, "/api/nodes/"+file.ID, nil, idParam(file.ID))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if got := decode[library.Node](t, rec); got.Path != "root/Week 1/notes.pdf" {
			t.Errorf("path = %q", got.Path)
		}
	})

	t.Run("children", func(t *testing.T) {
		rec := call(t, e.nodes.ListChildren, &admin, http.MethodGet, "/api/nodes/"+folder.ID+"/children", nil, idParam(folder.ID))
		children := decode[[]library.Node](t, rec)
		if len(children) != 1 || children[0].ID != file.ID {
			t.Errorf("children = %+v", children)
		}
	})
}

func TestNodeHandler_Errors(t *testing.T) {
	e := newTestEnv(t)
	scope := course
	folder := e.create(t, admin, librarySvc.CreateNodeRequest{Scope: &scope, Name: "A", Kind: library.KindFolder})
	missing := "0b7e3f4c-5d6a-4b8c-9e0f-1a2b3c4d5e6f"

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		caller     *models.Caller
		method     string
		body       any
		params     map[string]string
		wantStatus int
		wantKind   string
	}{
		{name: "malformed id", handler: e.nodes.GetNode, caller: &admin, method: http.MethodGet, params: idParam("not-a-uuid"), wantStatus: http.StatusBadRequest},
		{name: "missing id", handler: e.nodes.GetNode, caller: &admin, method: http.MethodGet, wantStatus: http.StatusBadRequest},
		{name: "unknown node", handler: e.nodes.GetNode, caller: &admin, method: http.MethodGet, params: idParam(missing), wantStatus: http.StatusNotFound, wantKind: "not_found"},
		{name: "no caller", handler: e.nodes.GetNode, method: http.MethodGet, params: idParam(folder.ID), wantStatus: http.StatusUnauthorized, wantKind: "unauthorized"},
		{
			name: "trainee edits course", handler: e.nodes.Rename, caller: &trainee, method: http.MethodPost,
			body: librarySvc.RenameRequest{Name: "B"}, params: idParam(folder.ID),
			wantStatus: http.StatusForbidden, wantKind: "permission_denied",
		},
		{
			name: "invalid name", handler: e.nodes.Rename, caller: &admin, method: http.MethodPost,
			body: librarySvc.RenameRequest{Name: "a/b"}, params: idParam(folder.ID),
			wantStatus: http.StatusBadRequest, wantKind: "invalid_name",
		},
		{
			name: "unknown field", handler: e.nodes.Rename, caller: &admin, method: http.MethodPost,
			body: `{"name":"B","extra":true}`, params: idParam(folder.ID),
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "move into itself", handler: e.nodes.Move, caller: &admin, method: http.MethodPost,
			body: librarySvc.MoveDestination{ParentID: folder.ID}, params: idParam(folder.ID),
			wantStatus: http.StatusBadRequest, wantKind: "cyclic_move",
		},
		{
			name: "video on folder", handler: e.nodes.AttachVideo, caller: &admin, method: http.MethodPut,
			body: librarySvc.VideoRequest{URL: "https://videos.test/1", Title: "Intro"}, params: idParam(folder.ID),
			wantStatus: http.StatusBadRequest, wantKind: "validation",
		},
		{
			name: "content of folder", handler: e.nodes.GetContent, caller: &admin, method: http.MethodGet,
			params: idParam(folder.ID), wantStatus: http.StatusBadRequest, wantKind: "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, tt.handler, tt.caller, tt.method, "/api/nodes", tt.body, tt.params)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			problem := decode[map[string]any](t, rec)
			if tt.wantKind != "" && problem["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %s", problem["kind"], tt.wantKind)
			}
		})
	}
}

func TestNodeHandler_PersonalCopyFlow(t *testing.T) {
	e := newTestEnv(t)
	scope := course
	e.content.Put(services.ContentInfo{ContentID: "blob-1", SizeBytes: 300})

	week := e.create(t, admin, librarySvc.CreateNodeRequest{Scope: &scope, Name: "Week 1", Kind: library.KindFolder})
	slides := e.create(t, admin, librarySvc.CreateNodeRequest{ParentID: week.ID, Name: "slides.pdf", Kind: library.KindFile, ContentID: "blob-1"})

	rec := call(t, e.nodes.AttachVideo, &admin, http.MethodPut, "", librarySvc.VideoRequest{URL: "https://videos.test/1", Title: "Walkthrough"}, idParam(slides.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("attach video: %d %s", rec.Code, rec.Body.String())
	}

	// The trainee copies the week into their personal space twice
	dest := librarySvc.CopyDestination{CourseID: "c1", TraineeID: trainee.UserID}
	first := call(t, e.nodes.Copy, &trainee, http.MethodPost, "", dest, idParam(week.ID))
	second := call(t, e.nodes.Copy, &trainee, http.MethodPost, "", dest, idParam(week.ID))
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("copy: %d, %d: %s", first.Code, second.Code, second.Body.String())
	}
	copied := decode[library.Node](t, first)
	again := decode[library.Node](t, second)
	if copied.Name != "Week 1" || again.Name != "Week 1 (2)" {
		t.Errorf("copy names = %q, %q", copied.Name, again.Name)
	}
	if !copied.Scope.IsPersonal() || copied.ID == week.ID {
		t.Errorf("copy = %+v", copied)
	}

	children := decode[[]library.Node](t, call(t, e.nodes.ListChildren, &trainee, http.MethodGet, "", nil, idParam(copied.ID)))
	if len(children) != 1 || children[0].ContentID != "blob-1" || children[0].ExplanationVideo == nil {
		t.Fatalf("copied children = %+v", children)
	}
	personalFile := children[0]

	// Content resolves through the shared blob
	info := decode[services.ContentInfo](t, call(t, e.nodes.GetContent, &trainee, http.MethodGet, "", nil, idParam(personalFile.ID)))
	if info.URL != "https://cdn.test/blob-1" {
		t.Errorf("content url = %q", info.URL)
	}

	// Rename and move within the personal space
	rec = call(t, e.nodes.Rename, &trainee, http.MethodPost, "", librarySvc.RenameRequest{Name: "mine.pdf"}, idParam(personalFile.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(t, e.nodes.Move, &trainee, http.MethodPost, "", librarySvc.MoveDestination{ParentID: again.ID}, idParam(personalFile.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("move: %d %s", rec.Code, rec.Body.String())
	}
	if moved := decode[library.Node](t, rec); moved.Path != "root/Week 1 (2)/mine.pdf" {
		t.Errorf("moved path = %q", moved.Path)
	}

	// Moving it back into the course is refused
	rec = call(t, e.nodes.Move, &trainee, http.MethodPost, "", librarySvc.MoveDestination{ParentID: week.ID}, idParam(personalFile.ID))
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusForbidden {
		t.Errorf("move out of personal space: status %d", rec.Code)
	}

	rec = call(t, e.nodes.DetachVideo, &trainee, http.MethodDelete, "", nil, idParam(personalFile.ID))
	if got := decode[library.Node](t, rec); got.ExplanationVideo != nil {
		t.Error("video still attached after detach")
	}

	rec = call(t, e.nodes.Reconcile, &trainee, http.MethodPost, "", nil, idParam(copied.ID))
	if rec.Code != http.StatusOK {
		t.Errorf("reconcile: %d %s", rec.Code, rec.Body.String())
	}

	rec = call(t, e.nodes.DeleteNode, &trainee, http.MethodDelete, "", nil, idParam(again.ID))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(t, e.nodes.GetNode, &trainee, http.MethodGet, "", nil, idParam(personalFile.ID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted descendant: status %d, want 404", rec.Code)
	}
}

func TestTreeHandler_GetTree(t *testing.T) {
	e := newTestEnv(t)
	scope := course
	week := e.create(t, admin, librarySvc.CreateNodeRequest{Scope: &scope, Name: "Week 1", Kind: library.KindFolder})
	e.create(t, admin, librarySvc.CreateNodeRequest{ParentID: week.ID, Name: "intro.pdf", Kind: library.KindFile, SizeBytes: 5})
	e.create(t, admin, librarySvc.CreateNodeRequest{ParentID: week.ID, Name: "lab.docx", Kind: library.KindFile, SizeBytes: 7})
	e.create(t, admin, librarySvc.CreateNodeRequest{Scope: &scope, Name: "Empty", Kind: library.KindFolder})

	tests := []struct {
		name       string
		caller     models.Caller
		target     string
		wantStatus int
		wantRoots  int
		wantSize   int64
	}{
		{name: "full tree", caller: trainee, target: "/api/courses/c1/tree", wantStatus: http.StatusOK, wantRoots: 1, wantSize: 12},
		{name: "by type", caller: trainee, target: "/api/courses/c1/tree?file_type=pdf", wantStatus: http.StatusOK, wantRoots: 1, wantSize: 5},
		{name: "by query", caller: trainee, target: "/api/courses/c1/tree?q=LAB", wantStatus: http.StatusOK, wantRoots: 1, wantSize: 7},
		{name: "no match", caller: trainee, target: "/api/courses/c1/tree?q=zzz", wantStatus: http.StatusOK},
		{name: "unknown type", caller: trainee, target: "/api/courses/c1/tree?file_type=sheet", wantStatus: http.StatusBadRequest},
		{name: "module and trainee", caller: admin, target: "/api/courses/c1/tree?module_id=m1&trainee_id=t1", wantStatus: http.StatusBadRequest},
		{name: "other trainee's space", caller: trainee, target: "/api/courses/c1/tree?trainee_id=t2", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := tt.caller
			rec := call(t, e.trees.GetTree, &caller, http.MethodGet, tt.target, nil, map[string]string{"courseId": "c1"})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := decode[TreeResponse](t, rec)
			if len(resp.Roots) != tt.wantRoots {
				t.Fatalf("roots = %d, want %d", len(resp.Roots), tt.wantRoots)
			}
			if tt.wantRoots > 0 && resp.Roots[0].TotalSizeBytes != tt.wantSize {
				t.Errorf("total size = %d, want %d", resp.Roots[0].TotalSizeBytes, tt.wantSize)
			}
		})
	}
}

func TestTreeHandler_VerifyTree(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.service.EnsureScopeRoot(models.WithCaller(context.Background(), admin), course); err != nil {
		t.Fatalf("EnsureScopeRoot failed: %v", err)
	}

	rec := call(t, e.trees.VerifyTree, &admin, http.MethodGet, "/api/courses/c1/verify", nil, map[string]string{"courseId": "c1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	report := decode[library.ScopeReport](t, rec)
	if report.NodeCount != 1 || !report.OK() {
		t.Errorf("report = %+v", report)
	}

	rec = call(t, e.trees.VerifyTree, &trainee, http.MethodGet, "/api/courses/c1/verify", nil, map[string]string{"courseId": "c1"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("trainee verify: status %d, want 403", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
