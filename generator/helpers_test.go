package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeExamples creates 1.png .. 5.png in a temp dir, each holding distinct bytes.
func writeExamples(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		name := filepath.Join(dir, fmt.Sprintf("%d.png", i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("png-bytes-%d", i)), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

type countingModel struct {
	calls int
	last  Request
	res   Result
	err   error
}

func (m *countingModel) Generate(_ context.Context, req Request) (Result, error) {
	m.calls++
	m.last = req
	return m.res, m.err
}
