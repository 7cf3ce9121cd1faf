package template

// Template is a named prompt configuration that steers an analysis. Editing happens elsewhere;
// this service only reads templates.
type Template struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Instructions string `json:"instructions"`
	Model        string `json:"model,omitempty"`
}

const DefaultID = "default-ux-review"

// Default is used when the user did not select a template.
func Default() Template {
	return Template{
		ID:   DefaultID,
		Name: "UX review",
		SystemPrompt: "You are a senior product designer reviewing user interfaces. " +
			"Give concrete, prioritized findings about usability, accessibility, visual hierarchy and copy.",
		Instructions: "Analyze the attached designs and pages. Reference the screenshot or file each finding applies to.",
	}
}
