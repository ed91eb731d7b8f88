package snapshot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/types"
)

type fakeRegistry struct {
	sessions map[string]types.Session
}

func newFakeRegistry(names ...string) *fakeRegistry {
	f := &fakeRegistry{sessions: map[string]types.Session{}}
	for _, n := range names {
		f.sessions[n] = types.Session{
			Name:      n,
			Status:    types.SessionActive,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	}
	return f
}

func (f *fakeRegistry) List(ctx context.Context) ([]*types.Session, error) {
	var out []*types.Session
	for _, s := range f.sessions {
		s := s
		out = append(out, &s)
	}
	return out, nil
}

func (f *fakeRegistry) ImportRecord(ctx context.Context, sess types.Session) error {
	if _, exists := f.sessions[sess.Name]; exists {
		return railyarderr.Validation(railyarderr.CodeSessionExists, "session already exists").
			WithDetails(map[string]any{"name": sess.Name})
	}
	f.sessions[sess.Name] = sess
	return nil
}

func TestExportProducesSchemaVersionedDocument(t *testing.T) {
	reg := newFakeRegistry("alpha", "beta")
	var buf bytes.Buffer
	if err := Export(context.Background(), reg, &buf, time.Now()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"schema_version": 1`)) {
		t.Fatalf("expected schema_version field in output, got %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("alpha")) || !bytes.Contains(buf.Bytes(), []byte("beta")) {
		t.Fatalf("expected both sessions in export, got %s", buf.String())
	}
}

func TestImportIntoEmptyRegistryPreservesSessionSet(t *testing.T) {
	src := newFakeRegistry("alpha", "beta")
	var buf bytes.Buffer
	if err := Export(context.Background(), src, &buf, time.Now()); err != nil {
		t.Fatal(err)
	}

	dst := newFakeRegistry()
	result, err := Import(context.Background(), dst, &buf, DuplicateReject, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(result.Imported) != 2 {
		t.Fatalf("expected 2 imported, got %+v", result)
	}
	if len(dst.sessions) != 2 {
		t.Fatalf("expected destination to have 2 sessions, got %d", len(dst.sessions))
	}
}

func TestImportRejectsDuplicateByDefault(t *testing.T) {
	src := newFakeRegistry("alpha")
	var buf bytes.Buffer
	if err := Export(context.Background(), src, &buf, time.Now()); err != nil {
		t.Fatal(err)
	}

	dst := newFakeRegistry("alpha")
	_, err := Import(context.Background(), dst, &buf, DuplicateReject, false)
	if err == nil {
		t.Fatal("expected duplicate-reject import to fail on name collision")
	}
}

func TestImportSkipsDuplicateWhenPolicySkip(t *testing.T) {
	src := newFakeRegistry("alpha", "beta")
	var buf bytes.Buffer
	if err := Export(context.Background(), src, &buf, time.Now()); err != nil {
		t.Fatal(err)
	}

	dst := newFakeRegistry("alpha")
	result, err := Import(context.Background(), dst, &buf, DuplicateSkip, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "alpha" {
		t.Fatalf("expected alpha to be skipped, got %+v", result)
	}
	if len(result.Imported) != 1 || result.Imported[0] != "beta" {
		t.Fatalf("expected beta to be imported, got %+v", result)
	}
}

func TestImportDryRunDoesNotWrite(t *testing.T) {
	src := newFakeRegistry("alpha")
	var buf bytes.Buffer
	if err := Export(context.Background(), src, &buf, time.Now()); err != nil {
		t.Fatal(err)
	}

	dst := newFakeRegistry()
	result, err := Import(context.Background(), dst, &buf, DuplicateReject, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Imported) != 1 {
		t.Fatalf("expected dry-run to report what would be imported, got %+v", result)
	}
	if len(dst.sessions) != 0 {
		t.Fatal("expected dry-run to make no actual changes")
	}
}

func TestImportRejectsNewerSchemaVersion(t *testing.T) {
	doc := `{"schema_version": 999, "exported_at": "2026-01-01T00:00:00Z", "sessions": []}`
	dst := newFakeRegistry()
	_, err := Import(context.Background(), dst, bytes.NewBufferString(doc), DuplicateReject, false)
	if err == nil {
		t.Fatal("expected import of a newer schema version to be rejected")
	}
}
