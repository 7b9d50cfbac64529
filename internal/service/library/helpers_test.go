package library

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	lib "courseware/internal/domain/models/library"
	librarySvc "courseware/internal/domain/services/library"
	"courseware/internal/filetypes"
	"courseware/internal/repository/memory"
	storage "courseware/internal/storage/memory"
)

var course = lib.Scope{CourseID: "c1"}

type fixture struct {
	repo    *memory.NodeRepository
	quota   *storage.QuotaManager
	content *storage.ContentStore
	core    *Core
	nodes   librarySvc.NodeService
	copies  librarySvc.CopyService
	moves   librarySvc.MoveService
	trees   librarySvc.TreeService
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	registry, err := filetypes.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		repo:    memory.NewNodeRepository(),
		quota:   storage.NewQuotaManager(1 << 20),
		content: storage.NewContentStore("https://cdn.test"),
	}
	f.core = NewCore(f.repo, NewScopeLocker(), nil, opts, logger)

	var clockMu sync.Mutex
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.core.SetClock(func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	})

	f.nodes = NewNodeService(f.core, registry, f.content, f.quota)
	f.copies = NewCopyService(f.core, f.quota)
	f.moves = NewMoveService(f.core)
	f.trees = NewTreeService(f.core)
	return f
}

func (f *fixture) root(t *testing.T, scope lib.Scope) *lib.Node {
	t.Helper()
	root, err := f.nodes.EnsureScopeRoot(context.Background(), scope)
	if err != nil {
		t.Fatalf("EnsureScopeRoot failed: %v", err)
	}
	return root
}

func (f *fixture) folder(t *testing.T, parentID, name string) *lib.Node {
	t.Helper()
	n, err := f.nodes.CreateNode(context.Background(), &librarySvc.CreateNodeRequest{
		ParentID: parentID,
		Name:     name,
		Kind:     lib.KindFolder,
	})
	if err != nil {
		t.Fatalf("create folder %q failed: %v", name, err)
	}
	return n
}

func (f *fixture) file(t *testing.T, parentID, name string, size int64) *lib.Node {
	t.Helper()
	n, err := f.nodes.CreateNode(context.Background(), &librarySvc.CreateNodeRequest{
		ParentID:  parentID,
		Name:      name,
		Kind:      lib.KindFile,
		SizeBytes: size,
	})
	if err != nil {
		t.Fatalf("create file %q failed: %v", name, err)
	}
	return n
}

func (f *fixture) get(t *testing.T, id string) *lib.Node {
	t.Helper()
	n, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) failed: %v", id, err)
	}
	return n
}

// snapshot returns every node of a scope keyed by id
func (f *fixture) snapshot(t *testing.T, scope lib.Scope) map[string]lib.Node {
	t.Helper()
	nodes, err := f.repo.ListByScope(context.Background(), scope)
	if err != nil {
		t.Fatalf("ListByScope failed: %v", err)
	}
	out := make(map[string]lib.Node, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out
}

// assertValid fails the test when the scope breaks any structural invariant
func (f *fixture) assertValid(t *testing.T, scope lib.Scope) {
	t.Helper()
	report, err := f.trees.VerifyScope(context.Background(), scope)
	if err != nil {
		t.Fatalf("VerifyScope failed: %v", err)
	}
	for _, v := range report.Violations {
		t.Errorf("%s: node %s: %s", scope, v.NodeID, v.Problem)
	}
}

// courseTree builds root/A(folder)/B.pdf in the course scope
func (f *fixture) courseTree(t *testing.T) (root, a, b *lib.Node) {
	t.Helper()
	root = f.root(t, course)
	a = f.folder(t, root.ID, "A")
	b = f.file(t, a.ID, "B.pdf", 1000)
	return root, a, b
}
