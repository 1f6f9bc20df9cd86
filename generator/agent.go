package generator

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAssetLoad means the example images could not be loaded; no call was made.
	ErrAssetLoad = errors.New("example assets unavailable")
	// ErrService means the generation service call failed.
	ErrService = errors.New("generation service failed")
)

// Agent prepares the few-shot conversation and calls the image model.
type Agent struct {
	llm    ImageModel
	assets AssetSource
	policy PromptPolicy
}

func NewAgent(llm ImageModel, assets AssetSource, policy PromptPolicy) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("image model is required")
	}
	if assets == nil {
		return nil, errors.New("asset source is required")
	}
	return &Agent{llm: llm, assets: assets, policy: policy}, nil
}

// Generate loads the examples, assembles the conversation and calls the model
// once. sess may be nil.
func (a *Agent) Generate(ctx context.Context, sess *Session, prompt string) (Result, error) {
	prompt, err := a.policy.Apply(prompt)
	if err != nil {
		return Result{}, err
	}

	examples, err := a.assets.Examples(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	if err := sess.Advance(StateAssetsLoaded); err != nil {
		return Result{}, err
	}

	req, err := NewRequest(examples, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	if err := sess.Advance(StateRequestAssembled); err != nil {
		return Result{}, err
	}

	res, err := a.llm.Generate(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrService, err)
	}
	if err := sess.Advance(StateServiceCalled); err != nil {
		return Result{}, err
	}
	return res, nil
}

// NewRequest builds the conversation and asks for both text and image output.
func NewRequest(examples []ExampleAsset, prompt string) (Request, error) {
	turns, err := BuildConversation(examples, prompt)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Turns:      turns,
		Modalities: []Modality{ModalityText, ModalityImage},
	}, nil
}
