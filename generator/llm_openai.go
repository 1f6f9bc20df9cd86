package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIImageModel is used when the openai provider has no model configured.
const DefaultOpenAIImageModel = string(openai.ImageModelGPTImage1)

// OpenAIImageModel implements ImageModel using the official openai-go SDK (images API).
// The images API takes a single prompt, so the conversation is folded into text.
type OpenAIImageModel struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAIImageModelFromConfig(cfg *LLMSettings) (*OpenAIImageModel, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY or llm.api_key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIImageModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIImageModel{Model: model, Opts: opts}, nil
}

func (o *OpenAIImageModel) Generate(ctx context.Context, req Request) (Result, error) {
	client := openai.NewClient(o.Opts...)

	params := openai.ImageGenerateParams{
		Prompt: FoldPrompt(req.Turns),
		Model:  openai.ImageModel(o.Model),
		N:      openai.Int(1),
	}
	// dall-e models answer with URLs unless asked otherwise; gpt-image-1 rejects the field.
	if strings.HasPrefix(o.Model, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	} else {
		params.OutputFormat = openai.ImageGenerateParamsOutputFormatPNG
	}

	resp, err := client.Images.Generate(ctx, params)
	if err != nil {
		return Result{}, err
	}
	if resp == nil {
		return Result{}, errors.New("openai: nil response")
	}

	var res Result
	for i, img := range resp.Data {
		if img.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(img.B64JSON)
			if err != nil {
				return Result{}, fmt.Errorf("openai: decode image %d: %w", i, err)
			}
			res.Parts = append(res.Parts, Part{Image: &InlineImage{MIMEType: pngMIME, Data: data}})
		}
		if img.RevisedPrompt != "" {
			res.Parts = append(res.Parts, Part{Text: img.RevisedPrompt})
		}
	}
	return res, nil
}

// FoldPrompt flattens a conversation into one prompt: the system instruction,
// the example captions as style references and the final request.
func FoldPrompt(turns []Turn) string {
	var system, examples []string
	var request string
	last := -1
	for i, t := range turns {
		if t.Role == RoleUser && t.Image == nil {
			last = i
		}
	}
	for i, t := range turns {
		switch {
		case t.Role == RoleSystem:
			system = append(system, t.Text)
		case i == last:
			request = t.Text
		case t.Role == RoleUser && t.Image == nil:
			examples = append(examples, t.Text)
		}
	}

	var sb strings.Builder
	for _, s := range system {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	if len(examples) > 0 {
		sb.WriteString("Earlier requests drawn in the same style:\n")
		for _, e := range examples {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}
	sb.WriteString("\nRequest: ")
	sb.WriteString(request)
	return sb.String()
}
