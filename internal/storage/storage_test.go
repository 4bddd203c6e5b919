package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// exercise runs the behavior every backend shares.
func exercise(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, _, err := b.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	docs := []Meta{
		{ID: "a", Name: "First", LastModified: base, Preview: "Hello"},
		{ID: "b", Name: "Second é", LastModified: base.Add(2 * time.Hour), Preview: "Wörld & more"},
		{ID: "c", Name: "Third", LastModified: base.Add(time.Hour)},
	}
	for _, m := range docs {
		if err := b.Save(ctx, m, "<p>"+m.Name+"</p>"); err != nil {
			t.Fatalf("Save(%s) error = %v", m.ID, err)
		}
	}

	content, meta, err := b.Load(ctx, "b")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if content != "<p>Second é</p>" {
		t.Errorf("content = %q", content)
	}
	if meta.Name != "Second é" || meta.Preview != "Wörld & more" || !meta.LastModified.Equal(docs[1].LastModified) {
		t.Errorf("meta = %+v", meta)
	}

	list, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "b,c,a" {
		t.Errorf("List() order = %v, want b,c,a", ids)
	}

	if err := b.Save(ctx, Meta{ID: "a", Name: "First", LastModified: base.Add(3 * time.Hour)}, "<p>v2</p>"); err != nil {
		t.Fatal(err)
	}
	if content, _, _ := b.Load(ctx, "a"); content != "<p>v2</p>" {
		t.Errorf("overwritten content = %q", content)
	}

	if err := b.Delete(ctx, "c"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := b.Delete(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	list, _ = b.List(ctx)
	if len(list) != 2 || list[0].ID != "a" {
		t.Errorf("List() after delete = %+v", list)
	}
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "docs"))
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, b)

	if err := b.Save(context.Background(), Meta{ID: "../escape"}, "x"); err == nil {
		t.Error("expected error for id with path separator")
	}
}

func TestFileBackendStampsLastModified(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Save(context.Background(), Meta{ID: "x"}, ""); err != nil {
		t.Fatal(err)
	}
	_, meta, err := b.Load(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if meta.LastModified.IsZero() {
		t.Error("LastModified was not set")
	}
}

func TestEncrypted(t *testing.T) {
	dir := t.TempDir()
	plain, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	enc := NewEncrypted(plain, "secret")

	if err := enc.Save(ctx, Meta{ID: "doc", Name: "Doc"}, "<p>private</p>"); err != nil {
		t.Fatal(err)
	}
	raw, _, err := plain.Load(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(raw, "private") || !strings.HasPrefix(raw, cryptMagic) {
		t.Errorf("stored content is not encrypted: %q", raw)
	}

	got, meta, err := enc.Load(ctx, "doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "<p>private</p>" || meta.Name != "Doc" {
		t.Errorf("Load() = %q, %+v", got, meta)
	}

	if _, _, err := NewEncrypted(plain, "wrong").Load(ctx, "doc"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Load() with wrong passphrase error = %v, want ErrDecrypt", err)
	}

	list, err := enc.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("List() = %v, %v", list, err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, u := range []string{dir, "file://" + dir} {
		b, err := Open(context.Background(), u)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", u, err)
		}
		if _, ok := b.(*FileBackend); !ok {
			t.Errorf("Open(%q) = %T, want *FileBackend", u, b)
		}
	}
	if _, err := Open(context.Background(), "ftp://example.com"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if _, err := Open(context.Background(), "s3://"); err == nil {
		t.Error("expected error for s3 url without bucket")
	}
}

type object struct {
	data     []byte
	meta     map[string]string
	modified time.Time
}

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string]object)} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = object{data: data, meta: in.Metadata, modified: time.Now()}
	return &s3.PutObjectOutput{ETag: aws.String("etag")}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(o.data)), Metadata: o.meta}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: o.meta}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		o := f.objects[k]
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k), LastModified: aws.Time(o.modified)})
	}
	return out, nil
}

func TestS3Backend(t *testing.T) {
	fake := newFakeS3()
	b := NewS3BackendFromClient(fake, "bucket", "/docs/")
	exercise(t, b)

	if _, ok := fake.objects["docs/qwill-content-a.html"]; !ok {
		t.Errorf("objects = %v, want key under prefix", fake.objects)
	}
}
