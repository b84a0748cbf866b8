package topics

import "github.com/charmbracelet/glamour"

// Renderer turns a topic's raw content into terminal output. ext is the
// topic file's extension, dot included.
type Renderer interface {
	Render(content, ext string) string
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(content, ext string) string

func (f RendererFunc) Render(content, ext string) string { return f(content, ext) }

var plain = RendererFunc(func(content, _ string) string { return content })

// Markdown renders .md topics with glamour, styled for the terminal and
// wrapped at width (0 keeps glamour's default). Other topics, and content
// glamour rejects, come back unchanged.
func Markdown(width int) Renderer {
	return RendererFunc(func(content, ext string) string {
		if ext != ".md" {
			return content
		}
		opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
		if width > 0 {
			opts = append(opts, glamour.WithWordWrap(width))
		}
		tr, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			return content
		}
		out, err := tr.Render(content)
		if err != nil {
			return content
		}
		return out
	})
}
