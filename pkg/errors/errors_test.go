package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	t.Parallel()

	if meta := MetadataFor(CodeUnauthenticated); meta.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected status for unauthenticated: %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeSyncFailed); !meta.Retryable {
		t.Fatal("sync failures must be retryable")
	}
	if meta := MetadataFor(Code("BOGUS")); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code should map to internal, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("network down")
	err := Wrap(CodeSyncFailed, cause, "replace cart lines")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable")
	}
	if typed := As(err); typed == nil || typed.Code() != CodeSyncFailed {
		t.Fatalf("unexpected typed error: %v", err)
	}
	if !Is(err, CodeSyncFailed) {
		t.Fatal("Is should match the carried code")
	}
	if Is(err, CodeNotFound) {
		t.Fatal("Is must not match a different code")
	}
}

func TestDumpErrorChain(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("tcp reset")
	err := Wrap(CodeDependency, cause, "remote cart unavailable")
	dump := DumpError(err)

	if dump.Code != string(CodeDependency) {
		t.Fatalf("unexpected code: %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two links in chain, got %d", len(dump.Chain))
	}
}
