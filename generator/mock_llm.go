package generator

import (
	"context"
	"fmt"
)

// MockModel is a local stand-in that never calls an external service. It answers
// with the last example image of the conversation, followed by an echo of the prompt.
type MockModel struct{}

func (m MockModel) Generate(_ context.Context, req Request) (Result, error) {
	var res Result
	var prompt string
	for _, t := range req.Turns {
		switch {
		case t.Role == RoleModel && t.Image != nil:
			res.Parts = []Part{{Image: t.Image}}
		case t.Role == RoleUser:
			prompt = t.Text
		}
	}
	res.Parts = append(res.Parts, Part{Text: fmt.Sprintf("mock reply for %q", prompt)})
	return res, nil
}
