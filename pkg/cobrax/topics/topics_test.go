package topics

import (
	"bytes"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topicFS() fstest.MapFS {
	return fstest.MapFS{
		"rolloutfile.md":        {Data: []byte("# Rolloutfile\n\nScript reference")},
		"phases.txt":            {Data: []byte("Deployment phases")},
		"option-keep.txt":       {Data: []byte("Keep help")},
		"option-parallel.txt":   {Data: []byte("Parallel help")},
		"layout.txxt":           {Data: []byte("Remote layout")},
		"ignore.json":           {Data: []byte("{}")},
		"advanced/proxying.txt": {Data: []byte("Proxy help")},
	}
}

func TestScanTopics(t *testing.T) {
	t.Run("default extensions", func(t *testing.T) {
		tm := New(topicFS())
		require.NoError(t, tm.scanTopics())

		tests := []struct {
			name     string
			expected bool
			content  string
		}{
			{"phases", true, "Deployment phases"},
			{"rolloutfile", true, "# Rolloutfile\n\nScript reference"},
			{"proxying", true, "Proxy help"},
			{"layout", false, ""},
			{"ignore", false, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				topic, exists := tm.GetTopic(tt.name)
				assert.Equal(t, tt.expected, exists)
				if exists {
					assert.Equal(t, tt.content, topic.Content)
				}
			})
		}
	})

	t.Run("custom extensions", func(t *testing.T) {
		tm := NewWithOptions(topicFS(), Options{Extensions: []string{".txxt"}})
		require.NoError(t, tm.scanTopics())

		assert.Equal(t, []string{"layout"}, tm.ListTopics())
	})
}

func TestGetTopic(t *testing.T) {
	tm := New(topicFS())
	require.NoError(t, tm.scanTopics())

	tests := []struct {
		input    string
		expected string
		exists   bool
	}{
		{"phases", "phases", true},
		{"option-keep", "option-keep", true},
		{"keep", "option-keep", true},
		{"--keep", "option-keep", true},
		{"-keep", "option-keep", true},
		{"--parallel", "option-parallel", true},
		{"-k", "", false},
		{"nonexistent", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			topic, exists := tm.GetTopic(tt.input)
			assert.Equal(t, tt.exists, exists)
			if exists {
				assert.Equal(t, tt.expected, topic.Name)
			}
		})
	}
}

func TestListTopicsSorted(t *testing.T) {
	tm := New(topicFS())
	require.NoError(t, tm.scanTopics())

	assert.Equal(t, []string{"option-keep", "option-parallel", "phases", "proxying", "rolloutfile"}, tm.ListTopics())
}

func TestNoTopics(t *testing.T) {
	for name, fsys := range map[string]fs.FS{"nil": nil, "empty": fstest.MapFS{}} {
		t.Run(name, func(t *testing.T) {
			tm := New(fsys)
			require.NoError(t, tm.scanTopics())
			assert.Empty(t, tm.ListTopics())

			var buf bytes.Buffer
			tm.WriteIndex(&buf, "rollout")
			assert.Equal(t, "No help topics available.\n", buf.String())
		})
	}
}

func newRoot(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	rootCmd := &cobra.Command{Use: "rollout", Short: "Test application"}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "deploy",
		Short: "Deploy an artifact",
		Run:   func(cmd *cobra.Command, args []string) {},
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	_, err := Initialize(rootCmd, topicFS())
	require.NoError(t, err)
	return rootCmd, &out
}

func TestInitializeReplacesHelp(t *testing.T) {
	rootCmd, _ := newRoot(t)

	helpCmd, _, err := rootCmd.Find([]string{"help"})
	require.NoError(t, err)
	assert.Equal(t, "help [command or topic]", helpCmd.Use)
}

func TestHelpCommandOutput(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"help", "phases"}, []string{"Deployment phases"}},
		{[]string{"help", "--", "--keep"}, []string{"Keep help"}},
		{[]string{"help", "topics"}, []string{
			"General topics:\n  phases\n  proxying\n  rolloutfile\n",
			"Option topics:\n  --keep\n  --parallel\n",
			"Use 'rollout help <topic>'",
		}},
		{[]string{"help", "deploy"}, []string{"Deploy an artifact"}},
	}

	for _, tt := range tests {
		t.Run(tt.args[len(tt.args)-1], func(t *testing.T) {
			rootCmd, out := newRoot(t)
			rootCmd.SetArgs(tt.args)
			require.NoError(t, rootCmd.Execute())
			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestMarkdownRendererPassesPlainText(t *testing.T) {
	r := Markdown(0)
	assert.Equal(t, "plain", r.Render("plain", ".txt"))
	assert.Contains(t, r.Render("# Title", ".md"), "Title")
}
