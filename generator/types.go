package generator

// Role tags a turn of the conversation sent to the image model.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Modality is an output kind the model is allowed to answer with.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

const pngMIME = "image/png"

// InlineImage is raw image bytes plus their MIME type.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Turn is one message of the conversation. Exactly one of Text or Image is set.
type Turn struct {
	Role  Role
	Text  string
	Image *InlineImage
}

// Request is what gets sent to an ImageModel.
type Request struct {
	Turns      []Turn
	Modalities []Modality
}

// Part is one unit of the model's reply.
type Part struct {
	Text  string
	Image *InlineImage
}

// HasImage reports whether the part carries image bytes.
func (p Part) HasImage() bool {
	return p.Image != nil && len(p.Image.Data) > 0
}

// Result is the model's reply, parts in the order they were returned.
type Result struct {
	Parts []Part
}
