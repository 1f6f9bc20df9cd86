package publisher

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"dolly_image_generator/generator"
)

// ErrPublish means a generated image could not be written to the public directory.
var ErrPublish = errors.New("publish generated image failed")

// OutcomeKind is the resolved result of a generate request.
type OutcomeKind string

const (
	OutcomeImage  OutcomeKind = "image"
	OutcomeText   OutcomeKind = "text"
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is what the client gets back. FileName is set for images, Text for text replies.
type Outcome struct {
	Kind     OutcomeKind
	FileName string
	Text     string
}

// Publisher writes generated images into the public directory, where they are
// served as static files.
type Publisher struct {
	dir     string
	verbose bool
	logger  *log.Logger
	newName func() string
}

// New creates a Publisher and makes sure dir exists.
func New(dir string, verbose bool, logger *log.Logger) (*Publisher, error) {
	if dir == "" {
		return nil, errors.New("public directory required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Publisher{
		dir:     dir,
		verbose: verbose,
		logger:  logger,
		newName: NewImageName,
	}, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Dir is the public directory images are written to.
func (p *Publisher) Dir() string {
	return p.dir
}

// Resolve picks the first usable part of res. An image is saved to disk and
// referenced by file name; a text part is returned as is; no part at all is
// the failed outcome.
func (p *Publisher) Resolve(res generator.Result) (Outcome, error) {
	part, ok := generator.FirstPart(res)
	if !ok {
		p.infof("Model returned no image or text (%d parts)", len(res.Parts))
		return Outcome{Kind: OutcomeFailed}, nil
	}
	if !part.HasImage() {
		p.infof("Accompanying text: %s", part.Text)
		return Outcome{Kind: OutcomeText, Text: part.Text}, nil
	}

	name, err := p.saveImage(part.Image.Data)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeImage, FileName: name}, nil
}

func (p *Publisher) saveImage(data []byte) (string, error) {
	name := p.newName()
	path := filepath.Join(p.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrPublish, err)
	}
	p.logger.Printf("Image saved as %s", path)
	return name, nil
}

// NewImageName combines a millisecond timestamp with a random UUID.
func NewImageName() string {
	return fmt.Sprintf("generated_image_%d-%s.png", time.Now().UnixMilli(), uuid.NewString())
}

// HTML renders the outcome as the fragment sent back to the browser.
func (o Outcome) HTML() (string, error) {
	switch o.Kind {
	case OutcomeImage:
		return fmt.Sprintf(`Image generated! <br><img src="/%s" alt="Generated Image">`, o.FileName), nil
	case OutcomeText:
		text, err := mdToHTML(o.Text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Generated text: %s<br>No image generated.", text), nil
	default:
		return "Image generation failed or no image was returned.", nil
	}
}

// mdToHTML renders model text. goldmark drops raw HTML unless told otherwise.
func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
