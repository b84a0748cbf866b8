package execution

import "github.com/arthur-debert/rollout/pkg/paths"

// Quote quotes s for a remote or local shell command. See paths.Quote.
func Quote(s string) string { return paths.Quote(s) }
