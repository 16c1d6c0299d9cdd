package crypto

import (
	"strings"
	"testing"
)

func TestNewUID(t *testing.T) {
	uid, err := NewUID("student")
	if err != nil {
		t.Fatalf("uid error: %v", err)
	}
	if !strings.HasPrefix(uid, "STUD-") || len(uid) != len("STUD-")+8 {
		t.Fatalf("unexpected student uid %s", uid)
	}
	uid, err = NewUID("teacher")
	if err != nil {
		t.Fatalf("uid error: %v", err)
	}
	if !strings.HasPrefix(uid, "TEACH-") {
		t.Fatalf("unexpected teacher uid %s", uid)
	}
}

func TestNewJoiningCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewJoiningCode()
		if err != nil {
			t.Fatalf("code error: %v", err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("expected six digit code, got %s", code)
		}
	}
}
