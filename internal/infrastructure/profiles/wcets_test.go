package profiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	schederr "github.com/jbctechsolutions/rasco/internal/domain/errors"
)

func TestFetch_MissingWorkload(t *testing.T) {
	root := t.TempDir()
	r := NewReader(root, 5, 5)
	_, _, err := r.Fetch("nonexistent")
	if !errors.Is(err, schederr.ErrMissingWCET) {
		t.Fatalf("expected ErrMissingWCET, got %v", err)
	}
}

func TestFetch_ParsesAndConvertsToNanoseconds(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dedup", "7_288") // (1<<3)-1=7, 4*72=288
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "wcet.txt"), []byte("0.002\n1500000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewReader(root, 5, 5)
	wcets, maxInsn, err := r.Fetch("dedup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wcets[3][4] != 2_000_000 {
		t.Errorf("wcets[3][4] = %d, want 2000000ns", wcets[3][4])
	}
	if maxInsn != 1_500_000 {
		t.Errorf("maxInsn = %d, want 1500000", maxInsn)
	}
}

func TestFetch_TracksLargestInstructionCountAcrossPartitions(t *testing.T) {
	root := t.TempDir()
	for _, d := range []struct {
		dir  string
		insn string
	}{
		{"7_288", "1000"},
		{"15_360", "5000"},
	} {
		dir := filepath.Join(root, "canneal", d.dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "wcet.txt"), []byte("0.001\n"+d.insn+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(root, 5, 5)
	_, maxInsn, err := r.Fetch("canneal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxInsn != 5000 {
		t.Errorf("maxInsn = %d, want 5000", maxInsn)
	}
}
