// Package registry provides a generic, thread-safe, ordered registry.
// The release engine keeps its phases in one: names are unique, lookups of
// unknown names fail, and iteration follows registration order.
package registry
