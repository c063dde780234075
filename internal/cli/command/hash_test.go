package command

import (
	"strings"
	"testing"

	"github.com/yndnr/stockgate/internal/core/domain"
)

func TestHashPassword(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"flag", "", []string{"hash", "password", "--password", "wonderland"}},
		{"stdin", "wonderland\n", []string{"hash", "password"}},
		{"stdin without newline", "wonderland", []string{"hash", "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := h.run(t, tt.stdin, tt.args...)
			if r.err != nil {
				t.Fatalf("hash password failed: %v", r.err)
			}
			hash := strings.TrimSpace(r.stdout)
			if !domain.IsArgon2Hash(hash) {
				t.Fatalf("output %q is not an argon2id hash", hash)
			}
			if !domain.VerifySecret("wonderland", hash) {
				t.Error("hash does not verify the password")
			}
		})
	}
}

func TestHashPassword_EmptyInput(t *testing.T) {
	h := newHarness(t)
	if r := h.run(t, "\n", "hash", "password"); r.err == nil {
		t.Error("empty password accepted")
	}
}
