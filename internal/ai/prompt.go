package ai

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the system and user text for a request. Image references are passed
// to the model separately; the text lists every attachment so findings can cite them.
func BuildPrompt(req Request) (system, user string) {
	system = req.Template.SystemPrompt

	var b strings.Builder
	if req.Template.Instructions != "" {
		b.WriteString(req.Template.Instructions)
		b.WriteString("\n\n")
	}
	if len(req.Attachments) > 0 {
		b.WriteString("Attachments:\n")
		for i, a := range req.Attachments {
			fmt.Fprintf(&b, "%d. [%s] %s", i+1, a.Kind, a.Name)
			if a.URL != "" {
				fmt.Fprintf(&b, " <%s>", a.URL)
			}
			b.WriteString("\n")
			for _, s := range a.Screenshots {
				fmt.Fprintf(&b, "   - %s screenshot attached\n", s.Viewport)
			}
		}
		b.WriteString("\n")
	}
	if text := strings.TrimSpace(req.Text); text != "" {
		b.WriteString("Request:\n")
		b.WriteString(text)
	} else {
		b.WriteString("Request:\nReview the attachments above.")
	}
	return system, b.String()
}

// imageURLs collects every reference a vision model can fetch, in attachment order.
func imageURLs(req Request) []string {
	var out []string
	for _, a := range req.Attachments {
		if a.IsImage() && a.URL != "" {
			out = append(out, a.URL)
		}
		for _, s := range a.Screenshots {
			if s.URL != "" {
				out = append(out, s.URL)
			}
		}
	}
	return out
}
