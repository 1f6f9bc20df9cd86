package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"dolly_image_generator/generator"
	"dolly_image_generator/publisher"
)

type fakeModel struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	res     generator.Result
	err     error
	block   bool
}

func (m *fakeModel) Generate(ctx context.Context, req generator.Request) (generator.Result, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, req.Turns[len(req.Turns)-1].Text)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return generator.Result{}, ctx.Err()
	}
	return m.res, m.err
}

func (m *fakeModel) seen() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, append([]string(nil), m.prompts...)
}

type testEnv struct {
	srv        *httptest.Server
	model      *fakeModel
	publicDir  string
	exampleDir string
}

func imageResult(data string) generator.Result {
	return generator.Result{Parts: []generator.Part{
		{Image: &generator.InlineImage{MIMEType: "image/png", Data: []byte(data)}},
	}}
}

func newTestEnv(t *testing.T, model *fakeModel, policy generator.PromptPolicy, opts Options) *testEnv {
	t.Helper()
	root := t.TempDir()
	exampleDir := filepath.Join(root, "example")
	publicDir := filepath.Join(root, "public")
	if err := os.MkdirAll(exampleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(filepath.Join(exampleDir, fmt.Sprintf("%d.png", i)), []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	logger := log.New(io.Discard, "", 0)
	agent, err := generator.NewAgent(model, generator.DiskAssets{Dir: exampleDir}, policy)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := publisher.New(publicDir, false, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(publicDir, "index.html"), []byte("<h1>Dolly</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts.Logger = logger
	s, err := New(agent, pub, opts)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, model: model, publicDir: publicDir, exampleDir: exampleDir}
}

func (e *testEnv) generate(t *testing.T, prompt string) (int, string) {
	t.Helper()
	resp, err := http.PostForm(e.srv.URL+"/generate", url.Values{"prompt": {prompt}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (e *testEnv) generatedFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(e.publicDir, "generated_image_*.png"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

var imgSrc = regexp.MustCompile(`<img src="/(generated_image_[^"]+\.png)" alt="Generated Image">`)

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Fatal("expected error without agent")
	}
}

func TestGenerateImage(t *testing.T) {
	env := newTestEnv(t, &fakeModel{res: imageResult("fresh-png")}, generator.PromptPolicy{}, Options{})

	status, body := env.generate(t, "A night nurse.")
	if status != http.StatusOK {
		t.Fatalf("status = %d body = %q", status, body)
	}
	m := imgSrc.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("body has no image tag: %q", body)
	}
	if files := env.generatedFiles(t); len(files) != 1 || filepath.Base(files[0]) != m[1] {
		t.Fatalf("files = %v, want only %s", files, m[1])
	}
	if _, prompts := env.model.seen(); prompts[0] != "A night nurse." {
		t.Fatalf("model saw prompt %q", prompts[0])
	}

	// The generated file is reachable as a static asset.
	resp, err := http.Get(env.srv.URL + "/" + m[1])
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(data) != "fresh-png" {
		t.Fatalf("static fetch status = %d body = %q", resp.StatusCode, data)
	}
}

func TestGenerateTextBeforeImage(t *testing.T) {
	res := generator.Result{Parts: []generator.Part{
		{Text: "Dolly is resting."},
		{Image: &generator.InlineImage{MIMEType: "image/png", Data: []byte("ignored")}},
	}}
	env := newTestEnv(t, &fakeModel{res: res}, generator.PromptPolicy{}, Options{})

	status, body := env.generate(t, "A sleepy student.")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "Generated text: ") || !strings.Contains(body, "Dolly is resting.") || !strings.Contains(body, "No image generated.") {
		t.Fatalf("body = %q", body)
	}
	if files := env.generatedFiles(t); len(files) != 0 {
		t.Fatalf("text outcome wrote %v", files)
	}
}

func TestGenerateNoContent(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, generator.PromptPolicy{}, Options{})

	status, body := env.generate(t, "anything")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body != "Image generation failed or no image was returned." {
		t.Fatalf("body = %q", body)
	}
	if files := env.generatedFiles(t); len(files) != 0 {
		t.Fatalf("failed outcome wrote %v", files)
	}
}

func TestGenerateMissingExample(t *testing.T) {
	env := newTestEnv(t, &fakeModel{res: imageResult("x")}, generator.PromptPolicy{}, Options{})
	if err := os.Remove(filepath.Join(env.exampleDir, "4.png")); err != nil {
		t.Fatal(err)
	}

	status, body := env.generate(t, "A pilot.")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if strings.TrimSpace(body) != genericFailure {
		t.Fatalf("body = %q, want generic failure", body)
	}
	if calls, _ := env.model.seen(); calls != 0 {
		t.Fatalf("model called %d times, want 0", calls)
	}
}

func TestGenerateServiceErrorHidesDetail(t *testing.T) {
	env := newTestEnv(t, &fakeModel{err: errors.New("api key AIza-secret rejected")}, generator.PromptPolicy{}, Options{})

	status, body := env.generate(t, "A pilot.")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if strings.Contains(body, "secret") || strings.TrimSpace(body) != genericFailure {
		t.Fatalf("body leaks detail: %q", body)
	}
}

func TestGenerateTimeout(t *testing.T) {
	env := newTestEnv(t, &fakeModel{block: true}, generator.PromptPolicy{}, Options{Timeout: 50 * time.Millisecond})

	status, _ := env.generate(t, "slow")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 after timeout", status)
	}
}

func TestGenerateInvalidPrompt(t *testing.T) {
	env := newTestEnv(t, &fakeModel{res: imageResult("x")}, generator.PromptPolicy{RequirePrompt: true}, Options{})

	status, body := env.generate(t, "  ")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d body = %q", status, body)
	}
	if calls, _ := env.model.seen(); calls != 0 {
		t.Fatalf("model called %d times", calls)
	}
}

func TestGenerateMultipartForm(t *testing.T) {
	env := newTestEnv(t, &fakeModel{res: imageResult("x")}, generator.PromptPolicy{}, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("prompt", "A gardener."); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	resp, err := http.Post(env.srv.URL+"/generate", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, prompts := env.model.seen(); len(prompts) != 1 || prompts[0] != "A gardener." {
		t.Fatalf("prompts = %v", prompts)
	}
}

func TestGenerateDistinctFilesForTwoRequests(t *testing.T) {
	env := newTestEnv(t, &fakeModel{res: imageResult("same-bytes")}, generator.PromptPolicy{}, Options{})

	var wg sync.WaitGroup
	names := make([]string, 2)
	for i, prompt := range []string{"A baker.", "A tailor."} {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			resp, err := http.PostForm(env.srv.URL+"/generate", url.Values{"prompt": {prompt}})
			if err != nil {
				t.Error(err)
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if m := imgSrc.FindStringSubmatch(string(body)); m != nil {
				names[i] = m[1]
			}
		}(i, prompt)
	}
	wg.Wait()

	if names[0] == "" || names[1] == "" || names[0] == names[1] {
		t.Fatalf("names = %v, want two distinct files", names)
	}
	if files := env.generatedFiles(t); len(files) != 2 {
		t.Fatalf("files = %v, want 2", files)
	}
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, generator.PromptPolicy{}, Options{})
	resp, err := http.Get(env.srv.URL + "/generate")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, &fakeModel{}, generator.PromptPolicy{}, Options{})

	for path, want := range map[string]string{"/": "<h1>Dolly</h1>", "/healthz": "ok"} {
		resp, err := http.Get(env.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != want {
			t.Errorf("GET %s = %d %q, want %q", path, resp.StatusCode, body, want)
		}
	}
}
