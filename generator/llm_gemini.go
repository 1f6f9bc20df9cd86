package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the image-capable model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash-exp-image-generation"

// GeminiModel implements ImageModel with the Google GenAI SDK.
type GeminiModel struct {
	Client *genai.Client
	Model  string
}

func NewGeminiModelFromConfig(ctx context.Context, cfg *LLMSettings) (*GeminiModel, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; set API_KEY or llm.api_key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiModel{Client: client, Model: model}, nil
}

func (g *GeminiModel) Generate(ctx context.Context, req Request) (Result, error) {
	contents, system := toGeminiContents(req.Turns)
	config := &genai.GenerateContentConfig{
		SystemInstruction:  system,
		ResponseModalities: toGeminiModalities(req.Modalities),
	}

	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, contents, config)
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	return fromGeminiResponse(resp)
}

// toGeminiContents moves system turns into the system instruction, which the
// API does not accept as a conversation role.
func toGeminiContents(turns []Turn) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			if system == nil {
				system = genai.NewContentFromText(t.Text, genai.RoleUser)
			} else {
				system.Parts = append(system.Parts, genai.NewPartFromText(t.Text))
			}
		case RoleModel:
			contents = append(contents, turnContent(t, genai.RoleModel))
		default:
			contents = append(contents, turnContent(t, genai.RoleUser))
		}
	}
	return contents, system
}

func turnContent(t Turn, role genai.Role) *genai.Content {
	if t.Image != nil {
		return genai.NewContentFromBytes(t.Image.Data, t.Image.MIMEType, role)
	}
	return genai.NewContentFromText(t.Text, role)
}

func toGeminiModalities(mods []Modality) []string {
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		switch m {
		case ModalityText:
			out = append(out, string(genai.ModalityText))
		case ModalityImage:
			out = append(out, string(genai.ModalityImage))
		}
	}
	return out
}

// fromGeminiResponse keeps the parts of the first candidate. A reply without
// candidates (e.g. blocked by safety filters) is an empty result, not an error.
func fromGeminiResponse(resp *genai.GenerateContentResponse) (Result, error) {
	if resp == nil {
		return Result{}, errors.New("gemini: nil response")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return Result{}, nil
	}

	var res Result
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		switch {
		case p.InlineData != nil:
			res.Parts = append(res.Parts, Part{Image: &InlineImage{
				MIMEType: p.InlineData.MIMEType,
				Data:     p.InlineData.Data,
			}})
		case p.Text != "":
			res.Parts = append(res.Parts, Part{Text: p.Text})
		}
	}
	return res, nil
}
