package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/rollout/pkg/build"
	"github.com/arthur-debert/rollout/pkg/dispatcher"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/release"
	"github.com/arthur-debert/rollout/pkg/ui/styles"
	"github.com/charmbracelet/lipgloss"
)

// commandDetails are shown, in order, for a failed command.
var commandDetails = []string{"host", "command", "exit_status", "stdout", "stderr"}

// textRenderer writes human readable output. The terminal renderer is the
// same renderer with styles applied.
type textRenderer struct {
	out   io.Writer
	paint func(style, s string) string
}

func newTextRenderer(w io.Writer) *textRenderer {
	return &textRenderer{out: w, paint: func(_, s string) string { return s }}
}

func newTerminalRenderer(w io.Writer) *textRenderer {
	registry := styles.Default(lipgloss.NewRenderer(w))
	return &textRenderer{out: w, paint: registry.Render}
}

func (r *textRenderer) RenderResult(result interface{}) error {
	switch v := result.(type) {
	case *dispatcher.Result:
		switch {
		case v.Package != nil:
			return r.write(r.packageLines(v.Package))
		case v.Deploy != nil:
			return r.write(r.deployLines(v.Deploy))
		}
		return nil
	case *build.Result:
		return r.write(r.packageLines(v))
	case *release.Result:
		return r.write(r.deployLines(v))
	case string:
		return r.RenderMessage(v)
	default:
		_, err := fmt.Fprintf(r.out, "%+v\n", result)
		return err
	}
}

func (r *textRenderer) RenderError(err error) error {
	lines := []string{r.paint("Error", "Error: ") + err.Error()}

	if cmdErr := errors.Find(err, errors.ErrCommand); cmdErr != nil {
		for _, key := range commandDetails {
			value, ok := cmdErr.Details[key]
			if !ok {
				continue
			}
			text := fmt.Sprint(value)
			if text == "" {
				continue
			}
			lines = append(lines, r.detail(key, text)...)
		}
	}
	return r.write(lines)
}

func (r *textRenderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.out, msg)
	return err
}

func (r *textRenderer) packageLines(res *build.Result) []string {
	lines := []string{r.paint("Success", "Packaged ") + r.paint("Artifact", res.Name)}
	lines = append(lines, r.detail("location", res.Location)...)
	if res.Commit != "" {
		lines = append(lines, r.detail("commit", res.Commit)...)
	}
	return append(lines, r.detail("mode", res.Mode)...)
}

func (r *textRenderer) deployLines(res *release.Result) []string {
	if res.Failed != nil {
		return r.failureLines(res)
	}

	hosts := r.hostList(res.Hosts)
	var lines []string
	if res.Rollback {
		lines = append(lines, r.paint("Success", "Successfully rolled back ")+res.Project+" on "+hosts+".")
	} else {
		lines = append(lines, r.paint("Success", "Successfully deployed ")+r.paint("Artifact", res.Artifact)+" to "+hosts+".")
	}
	lines = append(lines, r.detail("release", res.Release)...)
	return append(lines, r.detail("deploy", res.DeployLink)...)
}

func (r *textRenderer) failureLines(res *release.Result) []string {
	lines := []string{
		r.paint("Error", "Deployment failed") + " at " + r.step(*res.Failed) + ".",
	}
	if len(res.Compensated) == 0 {
		return append(lines, r.paint("Muted", "Nothing needed to be reverted."))
	}
	lines = append(lines, r.paint("Heading", "Reverted:"))
	for _, step := range res.Compensated {
		lines = append(lines, "  "+r.step(step))
	}
	return lines
}

func (r *textRenderer) step(s release.Step) string {
	return r.paint("Phase", fmt.Sprintf("%q", s.Phase)) + " on " + r.paint("Host", s.Host)
}

func (r *textRenderer) hostList(hosts []string) string {
	painted := make([]string, len(hosts))
	for i, host := range hosts {
		painted[i] = r.paint("Host", host)
	}
	return strings.Join(painted, ", ")
}

// detail renders an indented key: value pair. Multi-line values go on
// their own lines below the key.
func (r *textRenderer) detail(key, value string) []string {
	label := r.paint("Detail", "  "+key+":")
	if !strings.Contains(value, "\n") {
		return []string{label + " " + value}
	}
	lines := []string{label}
	for _, line := range strings.Split(value, "\n") {
		lines = append(lines, "    "+line)
	}
	return lines
}

func (r *textRenderer) write(lines []string) error {
	_, err := io.WriteString(r.out, strings.Join(lines, "\n")+"\n")
	return err
}
