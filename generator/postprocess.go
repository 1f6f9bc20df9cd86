package generator

// FirstPart returns the first part, in reply order, that carries an image or
// non-empty text. Later parts are ignored even when they hold an image.
func FirstPart(res Result) (Part, bool) {
	for _, p := range res.Parts {
		if p.HasImage() {
			return Part{Image: p.Image}, true
		}
		if p.Text != "" {
			return Part{Text: p.Text}, true
		}
	}
	return Part{}, false
}
