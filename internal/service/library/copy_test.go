package library

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"courseware/internal/domain"
	lib "courseware/internal/domain/models/library"
	librarySvc "courseware/internal/domain/services/library"
)

func TestCopy_SuffixesCollidingNames(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, a, b := f.courseTree(t)
	dest := &librarySvc.CopyDestination{CourseID: "c1", FolderID: a.ID}

	wantNames := []string{"B (2).pdf", "B (3).pdf"}
	for _, want := range wantNames {
		clone, err := f.copies.Copy(ctx, b.ID, dest)
		if err != nil {
			t.Fatalf("Copy failed: %v", err)
		}
		if clone.Name != want {
			t.Errorf("clone name = %q, want %q", clone.Name, want)
		}
	}

	// Freed suffixes are reused smallest-first
	second := findChild(t, f, a.ID, "B (2).pdf")
	if err := f.nodes.DeleteNode(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	clone, err := f.copies.Copy(ctx, b.ID, dest)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if clone.Name != "B (2).pdf" {
		t.Errorf("clone name = %q, want %q", clone.Name, "B (2).pdf")
	}
	f.assertValid(t, course)
}

func findChild(t *testing.T, f *fixture, parentID, name string) *lib.Node {
	t.Helper()
	children, err := f.repo.ListChildren(context.Background(), parentID)
	if err != nil {
		t.Fatal(err)
	}
	for i := range children {
		if children[i].Name == name {
			return &children[i]
		}
	}
	t.Fatalf("no child %q under %s", name, parentID)
	return nil
}

func TestCopy_DeepSubtree(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, a, b := f.courseTree(t)
	sub := f.folder(t, a.ID, "Sub")
	f.file(t, sub.ID, "deep.pptx", 5)
	if _, err := f.nodes.AttachVideo(ctx, b.ID, &librarySvc.VideoRequest{URL: "https://v.example.com/b", Title: "B explained"}); err != nil {
		t.Fatal(err)
	}
	module := lib.Scope{CourseID: "c1", ModuleID: "m1"}
	source := f.snapshot(t, course)

	clone, err := f.copies.Copy(ctx, a.ID, &librarySvc.CopyDestination{CourseID: "c1", ModuleID: "m1"})
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	copied := f.snapshot(t, module)
	if len(copied) != 5 { // root, A, B.pdf, Sub, deep.pptx
		t.Fatalf("module scope has %d nodes, want 5", len(copied))
	}
	paths := make(map[string]lib.Node)
	for id, n := range copied {
		if _, shared := source[id]; shared {
			t.Errorf("clone reuses source id %s", id)
		}
		if n.Scope != module {
			t.Errorf("clone %s scope = %v", n.Name, n.Scope)
		}
		paths[n.Path] = n
	}
	for _, p := range []string{"root/A", "root/A/B.pdf", "root/A/Sub", "root/A/Sub/deep.pptx"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing cloned path %q", p)
		}
	}
	if v := paths["root/A/B.pdf"].ExplanationVideo; v == nil || v.Title != "B explained" {
		t.Errorf("explanation video not copied: %+v", v)
	}
	if clone.Path != "root/A" {
		t.Errorf("clone path = %q", clone.Path)
	}

	// Copies share no mutable state with their source
	if _, err := f.nodes.Rename(ctx, paths["root/A/B.pdf"].ID, &librarySvc.RenameRequest{Name: "mine.pdf"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.nodes.DetachVideo(ctx, paths["root/A/B.pdf"].ID); err != nil {
		t.Fatal(err)
	}
	if orig := f.get(t, b.ID); orig.Name != "B.pdf" || orig.ExplanationVideo == nil {
		t.Errorf("source changed through its clone: %+v", orig)
	}

	f.assertValid(t, course)
	f.assertValid(t, module)
}

func TestCopy_IntoOwnSubtree(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, a, _ := f.courseTree(t)
	sub := f.folder(t, a.ID, "Sub")

	clone, err := f.copies.Copy(ctx, a.ID, &librarySvc.CopyDestination{CourseID: "c1", FolderID: sub.ID})
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if clone.Path != "root/A/Sub/A" {
		t.Errorf("clone path = %q", clone.Path)
	}

	subtree, err := f.repo.ListSubtree(ctx, clone.ID)
	if err != nil {
		t.Fatal(err)
	}
	// A, B.pdf, Sub: the clone does not contain itself
	if len(subtree) != 3 {
		t.Errorf("clone subtree has %d nodes, want 3", len(subtree))
	}
	f.assertValid(t, course)
}

func TestCopy_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	_, a, b := f.courseTree(t)
	otherRoot := f.root(t, lib.Scope{CourseID: "c2"})

	tests := []struct {
		name     string
		sourceID string
		dest     *librarySvc.CopyDestination
		want     error
	}{
		{"missing source", "missing", &librarySvc.CopyDestination{CourseID: "c1"}, domain.ErrNotFound},
		{"missing destination folder", b.ID, &librarySvc.CopyDestination{CourseID: "c1", FolderID: "missing"}, domain.ErrNotFound},
		{"file as destination", a.ID, &librarySvc.CopyDestination{CourseID: "c1", FolderID: b.ID}, domain.ErrInvalidParent},
		{"folder in another scope", b.ID, &librarySvc.CopyDestination{CourseID: "c1", FolderID: otherRoot.ID}, domain.ErrInvalidParent},
		{"no course", b.ID, &librarySvc.CopyDestination{}, domain.ErrValidation},
		{"module and trainee", b.ID, &librarySvc.CopyDestination{CourseID: "c1", ModuleID: "m", TraineeID: "t"}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.copies.Copy(context.Background(), tt.sourceID, tt.dest); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCopy_QuotaExceededLeavesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, a, _ := f.courseTree(t)
	f.file(t, a.ID, "big.mp4", 2<<20)
	personal := lib.Scope{CourseID: "c1", TraineeID: "t1"}
	f.root(t, personal)
	before := f.repo.Len()

	_, err := f.copies.Copy(ctx, a.ID, &librarySvc.CopyDestination{CourseID: "c1", TraineeID: "t1"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if f.repo.Len() != before {
		t.Errorf("store grew from %d to %d nodes", before, f.repo.Len())
	}
	if got := f.quota.Used(personal); got != 0 {
		t.Errorf("quota used = %d, want 0", got)
	}
}

func TestCopy_CancelledLeavesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	_, a, _ := f.courseTree(t)
	before := f.snapshot(t, course)
	count := f.repo.Len()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.copies.Copy(ctx, a.ID, &librarySvc.CopyDestination{CourseID: "c1", TraineeID: "t1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("err = %v, want kind ErrCancelled", err)
	}
	if f.repo.Len() != count {
		t.Errorf("store has %d nodes, want %d", f.repo.Len(), count)
	}
	if after := f.snapshot(t, course); !reflect.DeepEqual(before, after) {
		t.Error("cancelled copy changed the source")
	}
}

func TestCopy_ConflictWhenSourceChanges(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, a, b := f.courseTree(t)

	// A stale snapshot of the source must not commit
	snapshot, err := f.repo.ListSubtree(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.nodes.Rename(ctx, b.ID, &librarySvc.RenameRequest{Name: "changed.pdf"}); err != nil {
		t.Fatal(err)
	}

	svc := f.copies.(*copyService)
	_, _, err = svc.copyLocked(ctx, snapshot, lib.Scope{CourseID: "c1", ModuleID: "m1"}, "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	module := f.snapshot(t, lib.Scope{CourseID: "c1", ModuleID: "m1"})
	if len(module) != 1 {
		t.Errorf("module scope has %d nodes, want only its root", len(module))
	}
}

func TestCopy_LongNameStaysWithinLimit(t *testing.T) {
	f := newFixture(t, Options{})
	_, a, _ := f.courseTree(t)
	src := f.file(t, a.ID, "ab."+strings.Repeat("x", 252), 1)

	clone, err := f.copies.Copy(context.Background(), src.ID, &librarySvc.CopyDestination{CourseID: "c1", FolderID: a.ID})
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if n := utf8.RuneCountInString(clone.Name); n > 255 {
		t.Errorf("clone name has %d runes, want <= 255", n)
	}
	f.assertValid(t, course)
}

func TestFileBytes_Saturates(t *testing.T) {
	nodes := []lib.Node{
		{Kind: lib.KindFile, SizeBytes: 10},
		{Kind: lib.KindFolder},
		{Kind: lib.KindFile, SizeBytes: math.MaxInt64},
		{Kind: lib.KindFile, SizeBytes: 5},
	}
	if got := fileBytes(nodes); got != math.MaxInt64 {
		t.Errorf("fileBytes = %d, want %d", got, int64(math.MaxInt64))
	}
	if got := fileBytes(nodes[:2]); got != 10 {
		t.Errorf("fileBytes = %d, want 10", got)
	}
}
