package errors

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestLauncherError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeItemNotFound, "item not found")
	if err.Code != ErrCodeItemNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeItemNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("disk full")
	wrapped := Wrap(cause, ErrCodeStoreWrite, "insert failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeStoreWrite) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeItemNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("id", int64(5)).WithDetail("title", "Camera")
	if detailed.Details["title"] != "Camera" {
		t.Error("WithDetail should add details")
	}
}

func TestIsFollowsNestedCodes(t *testing.T) {
	inner := New(ErrCodeInvalidTarget, "bad target")
	outer := Wrap(fmt.Errorf("row 3: %w", inner), ErrCodeStoreQuery, "scan failed")

	if !Is(outer, ErrCodeInvalidTarget) {
		t.Error("Is should find a code deeper in the chain")
	}
	if GetCode(outer) != ErrCodeStoreQuery {
		t.Errorf("GetCode should return the outermost code, got %s", GetCode(outer))
	}
	if GetCode(fmt.Errorf("plain")) != "" {
		t.Error("GetCode of a plain error should be empty")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := ModelMismatch(5, "Camera", "Camera2")
	if err.Code != ErrCodeModelMismatch {
		t.Errorf("expected code %s, got %s", ErrCodeModelMismatch, err.Code)
	}
	if err.Details["id"] != int64(5) {
		t.Error("ModelMismatch should include id detail")
	}

	err = InvalidTarget("launch:??", fmt.Errorf("boom"))
	if err.Code != ErrCodeInvalidTarget {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidTarget, err.Code)
	}
	if err.Details["descriptor"] != "launch:??" {
		t.Error("InvalidTarget should include descriptor detail")
	}
}

func TestToJSON(t *testing.T) {
	err := ConfigNotFound("/tmp/launcher.yml")
	var decoded map[string]interface{}
	if jerr := json.Unmarshal([]byte(err.ToJSON()), &decoded); jerr != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", jerr)
	}
	if decoded["code"] != string(ErrCodeConfigNotFound) {
		t.Errorf("unexpected code in JSON: %v", decoded["code"])
	}
}
