// Package idgen centralises identifier generation so that the rest of the
// code base never depends on a concrete uuid library directly.
package idgen
