package generator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemInstruction describes the character every generated image must depict.
const SystemInstruction = "You are an expert at generating images of Dolly, a fantasy character with dark skin tone, colorful hairstyles incorporating horn-like or decorative headpieces, and ornate or stylized outfits."

// ErrInvalidPrompt is returned when a prompt is rejected by the PromptPolicy.
var ErrInvalidPrompt = errors.New("invalid prompt")

type exampleShot struct {
	File        string
	Instruction string
}

// exampleShots are the few-shot pairs, in the order they are sent.
var exampleShots = []exampleShot{
	{File: "1.png", Instruction: "A beautiful librarian."},
	{File: "2.png", Instruction: "A school teacher."},
	{File: "3.png", Instruction: "A house maid."},
	{File: "4.png", Instruction: "A lingerie model."},
	{File: "5.png", Instruction: "A college student."},
}

// ExampleCount is the number of example pairs in every conversation.
var ExampleCount = len(exampleShots)

// BuildConversation lays out the system turn, one user/model pair per example
// and the caller's prompt as the closing user turn.
func BuildConversation(examples []ExampleAsset, prompt string) ([]Turn, error) {
	if len(examples) != len(exampleShots) {
		return nil, fmt.Errorf("expected %d example images, got %d", len(exampleShots), len(examples))
	}

	turns := make([]Turn, 0, 2+2*len(examples))
	turns = append(turns, Turn{Role: RoleSystem, Text: SystemInstruction})
	for _, ex := range examples {
		data, err := ex.Bytes()
		if err != nil {
			return nil, fmt.Errorf("decode example %s: %w", ex.Path, err)
		}
		mime := ex.MIMEType
		if mime == "" {
			mime = pngMIME
		}
		turns = append(turns,
			Turn{Role: RoleUser, Text: ex.Instruction},
			Turn{Role: RoleModel, Image: &InlineImage{MIMEType: mime, Data: data}},
		)
	}
	turns = append(turns, Turn{Role: RoleUser, Text: prompt})
	return turns, nil
}

// PromptPolicy is the optional validation applied to incoming prompts.
// The zero value passes every prompt through untouched.
type PromptPolicy struct {
	RequirePrompt  bool
	MaxPromptRunes int
}

// Apply validates the prompt and truncates it on a rune boundary when it is too long.
func (p PromptPolicy) Apply(prompt string) (string, error) {
	if p.RequirePrompt && strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidPrompt)
	}
	if p.MaxPromptRunes > 0 {
		prompt = truncateRunes(prompt, p.MaxPromptRunes)
	}
	return prompt, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := 0; i < limit; i++ {
		_, size := utf8.DecodeRuneInString(s[n:])
		n += size
	}
	return s[:n]
}
