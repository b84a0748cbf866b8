package ui_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/arthur-debert/rollout/pkg/build"
	"github.com/arthur-debert/rollout/pkg/dispatcher"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/release"
	"github.com/arthur-debert/rollout/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func deployResult() *dispatcher.Result {
	return &dispatcher.Result{
		Command: dispatcher.CommandDeploy,
		Deploy: &release.Result{
			Project:    "shop",
			Artifact:   "pkg/20261018120000-abc1234.tar.gz",
			Release:    "/opt/shop/releases/20261018120000-abc1234",
			DeployLink: "/opt/shop/deploys/2026-10-18_120500",
			Hosts:      []string{"web1", "web2"},
			Completed:  []release.Step{{Host: "web1", Phase: "upload"}},
		},
	}
}

func failedDeploy() *dispatcher.Result {
	res := deployResult()
	res.Deploy.Failed = &release.Step{Host: "web2", Phase: "extract"}
	res.Deploy.Compensated = []release.Step{
		{Host: "web2", Phase: "upload"},
		{Host: "web1", Phase: "extract"},
	}
	return res
}

func commandFailure() error {
	cmdErr := errors.New(errors.ErrCommand, "remote command failed").
		WithDetail("host", "web2").
		WithDetail("command", "tar -xzf ../x.tar.gz").
		WithDetail("exit_status", 2).
		WithDetail("stdout", "").
		WithDetail("stderr", "tar: short read\ntar: exiting")
	return errors.Wrap(cmdErr, errors.ErrDeployFailed,
		"deployment failed, previously completed deployment actions have been reverted").
		WithDetail("host", "web2").
		WithDetail("phase", "extract")
}

func TestNewRenderer(t *testing.T) {
	for _, format := range []ui.Format{ui.FormatAuto, ui.FormatTerminal, ui.FormatText, ui.FormatJSON, ui.FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			r, err := ui.NewRenderer(format, &bytes.Buffer{})
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}

	_, err := ui.NewRenderer(ui.Format(999), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestTextRenderResult(t *testing.T) {
	rollback := deployResult()
	rollback.Command = dispatcher.CommandRollback
	rollback.Deploy.Rollback = true

	tests := []struct {
		name   string
		result interface{}
		want   []string
		absent []string
	}{
		{
			name:   "deploy",
			result: deployResult(),
			want: []string{
				"Successfully deployed pkg/20261018120000-abc1234.tar.gz to web1, web2.",
				"  release: /opt/shop/releases/20261018120000-abc1234",
				"  deploy: /opt/shop/deploys/2026-10-18_120500",
			},
		},
		{
			name:   "rollback",
			result: rollback,
			want:   []string{"Successfully rolled back shop on web1, web2."},
		},
		{
			name:   "failed deploy",
			result: failedDeploy(),
			want: []string{
				`Deployment failed at "extract" on web2.`,
				"Reverted:",
				`  "upload" on web2`,
				`  "extract" on web1`,
			},
			absent: []string{"Successfully"},
		},
		{
			name: "package",
			result: &dispatcher.Result{
				Command: dispatcher.CommandPackage,
				Package: &build.Result{
					Name:     "20261018120000-abc1234.tar.gz",
					Location: "deploy@build:/srv/pkgs/20261018120000-abc1234.tar.gz",
					Commit:   "abc1234",
					Mode:     "host",
				},
			},
			want: []string{
				"Packaged 20261018120000-abc1234.tar.gz",
				"  location: deploy@build:/srv/pkgs/20261018120000-abc1234.tar.gz",
				"  commit: abc1234",
				"  mode: host",
			},
		},
		{
			name:   "plain string",
			result: "hello",
			want:   []string{"hello\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r, err := ui.NewRenderer(ui.FormatText, &buf)
			require.NoError(t, err)

			require.NoError(t, r.RenderResult(tt.result))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
			for _, skip := range tt.absent {
				assert.NotContains(t, buf.String(), skip)
			}
		})
	}
}

func TestTextRenderErrorShowsCommandOutput(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatText, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderError(commandFailure()))

	out := buf.String()
	assert.Contains(t, out, "Error: [DEPLOY_FAILED] deployment failed")
	assert.Contains(t, out, "  host: web2\n")
	assert.Contains(t, out, "  command: tar -xzf ../x.tar.gz\n")
	assert.Contains(t, out, "  exit_status: 2\n")
	assert.Contains(t, out, "  stderr:\n    tar: short read\n    tar: exiting\n")
	assert.NotContains(t, out, "stdout")
}

func TestTextRenderErrorWithoutCommand(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatText, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderError(errors.New(errors.ErrNoRollback, "no previous deploy to rollback to")))
	assert.Equal(t, "Error: [NO_ROLLBACK_TARGET] no previous deploy to rollback to\n", buf.String())
}

func TestTerminalRendererKeepsContent(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatTerminal, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderResult(deployResult()))
	assert.Contains(t, buf.String(), "web1")
	assert.Contains(t, buf.String(), "pkg/20261018120000-abc1234.tar.gz")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatJSON, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderResult(failedDeploy()))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "deploy", decoded["command"])
	deploy := decoded["deploy"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"host": "web2", "phase": "extract"}, deploy["failed"])
	assert.Len(t, deploy["compensated"], 2)

	buf.Reset()
	require.NoError(t, r.RenderError(commandFailure()))
	var payload struct {
		Error   string                 `json:"error"`
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "DEPLOY_FAILED", payload.Code)
	assert.Equal(t, "extract", payload.Details["phase"])
	assert.Equal(t, "tar: short read\ntar: exiting", payload.Details["stderr"])

	buf.Reset()
	require.NoError(t, r.RenderMessage("done"))
	assert.JSONEq(t, `{"message":"done"}`, buf.String())
}

func TestYAMLRendererSeparatesDocuments(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatYAML, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderResult(deployResult()))
	require.NoError(t, r.RenderMessage("done"))

	decoder := yaml.NewDecoder(&buf)
	var first struct {
		Command string `yaml:"command"`
		Deploy  struct {
			Hosts []string `yaml:"hosts"`
		} `yaml:"deploy"`
	}
	require.NoError(t, decoder.Decode(&first))
	assert.Equal(t, "deploy", first.Command)
	assert.Equal(t, []string{"web1", "web2"}, first.Deploy.Hosts)

	var second map[string]string
	require.NoError(t, decoder.Decode(&second))
	assert.Equal(t, "done", second["message"])
}
