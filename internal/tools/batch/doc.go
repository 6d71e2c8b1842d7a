// Package batch provides helpers for tools that act on several ids at once:
// parsing id arguments that may be a string, a comma-separated string or an
// array, and reporting per-id outcomes.
package batch
