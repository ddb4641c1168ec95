package object

import (
	"strings"
	"testing"
	"time"

	"jobboard-backend/internal/shared/util"
)

func TestPermanentKeyEmbedsOwnerAndTimestamp(t *testing.T) {
	at := time.Date(2026, time.March, 4, 5, 6, 7, 8, time.UTC)
	key, err := PermanentKey("user-1", "my cv.pdf", at)
	if err != nil {
		t.Fatalf("PermanentKey: %v", err)
	}
	if !strings.HasPrefix(key, util.OwnerKey("user-1")+"/") {
		t.Fatalf("expected owner namespace, got %q", key)
	}
	if !strings.Contains(key, "20260304T050607.000000008Z") {
		t.Fatalf("expected timestamp in key, got %q", key)
	}
	if !strings.HasSuffix(key, "_my cv.pdf") {
		t.Fatalf("expected file name suffix, got %q", key)
	}
}

func TestPermanentKeyRejectsTraversal(t *testing.T) {
	if _, err := PermanentKey("user-1", "../../etc/passwd", time.Now()); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}
