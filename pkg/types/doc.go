// Package types holds the small interfaces shared across rollout packages
// so that they can be faked in tests without import cycles.
package types
