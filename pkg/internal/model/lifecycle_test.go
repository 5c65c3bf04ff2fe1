package model_test

import (
	"testing"
	"time"

	"github.com/clintagossett/artvault/pkg/internal/model"
)

func TestLifecycleMarkDeleted(t *testing.T) {
	var lc model.Lifecycle

	if !lc.Active() {
		t.Fatal("new lifecycle should be active")
	}

	now := time.Now()
	if !lc.MarkDeleted(now, "user-1") {
		t.Fatal("first MarkDeleted should return true")
	}

	if lc.Active() {
		t.Fatal("deleted lifecycle should not be active")
	}

	if lc.DeletedAt == nil || !lc.DeletedAt.Equal(now) {
		t.Fatalf("DeletedAt = %v, want %v", lc.DeletedAt, now)
	}

	if lc.DeletedBy != "user-1" {
		t.Fatalf("DeletedBy = %q, want user-1", lc.DeletedBy)
	}
}

func TestLifecycleMarkDeletedIdempotent(t *testing.T) {
	var lc model.Lifecycle

	first := time.Now()
	lc.MarkDeleted(first, "user-1")

	// 重复删除不覆盖原始删除信息
	later := first.Add(time.Hour)
	if lc.MarkDeleted(later, "user-2") {
		t.Fatal("second MarkDeleted should return false")
	}

	if !lc.DeletedAt.Equal(first) {
		t.Fatalf("DeletedAt overwritten: %v", lc.DeletedAt)
	}

	if lc.DeletedBy != "user-1" {
		t.Fatalf("DeletedBy overwritten: %q", lc.DeletedBy)
	}
}
