// Package kgsearch looks up people and works in the Google Knowledge Graph
// Search API through the generated google.golang.org/api client.
package kgsearch
