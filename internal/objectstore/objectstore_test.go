package objectstore_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"orbix/internal/objectstore"
	"orbix/internal/services"
	"orbix/internal/testsupport"
)

func TestPutAndOpenURL(t *testing.T) {
	root := t.TempDir()
	st := objectstore.New(root, "https://cdn.test/")

	obj, err := st.Put(context.Background(), "renders", "renders/r1.mp4", strings.NewReader("fake-mp4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.URL != "https://cdn.test/renders/renders/r1.mp4" || obj.Size != 8 {
		t.Fatalf("unexpected object %+v", obj)
	}
	if got := testsupport.ReadFile(t, filepath.Join(root, "renders", "renders", "r1.mp4")); string(got) != "fake-mp4" {
		t.Fatalf("unexpected content %q", got)
	}

	f, err := st.OpenURL(obj.URL)
	if err != nil {
		t.Fatalf("OpenURL: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "fake-mp4" {
		t.Fatalf("unexpected content via URL %q", data)
	}
}

func TestFileURLsWithoutPublicBase(t *testing.T) {
	root := t.TempDir()
	st := objectstore.New(root, "")
	src := filepath.Join(t.TempDir(), "out.mp4")
	testsupport.WriteFile(t, src, 64)

	obj, err := st.PutFile(context.Background(), "renders", "a/b.mp4", src)
	if err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if !strings.HasPrefix(obj.URL, "file://") {
		t.Fatalf("expected file url, got %s", obj.URL)
	}
	bucket, key, err := st.Resolve(obj.URL)
	if err != nil || bucket != "renders" || key != "a/b.mp4" {
		t.Fatalf("Resolve: %s %s %v", bucket, key, err)
	}
}

func TestRejectsEscapesAndForeignURLs(t *testing.T) {
	st := objectstore.New(t.TempDir(), "https://cdn.test")

	local, err := st.LocalPath("renders", "../../etc/passwd")
	if err != nil {
		t.Fatalf("LocalPath: %v", err)
	}
	if !strings.HasPrefix(local, filepath.Join(st.Root(), "renders")) {
		t.Fatalf("path escaped bucket: %s", local)
	}
	if _, err := st.LocalPath("../x", "a"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected invalid bucket, got %v", err)
	}
	if _, err := st.OpenURL("https://elsewhere.test/renders/a.mp4"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected foreign url rejected, got %v", err)
	}
	if _, err := st.Open("renders", "missing.mp4"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
