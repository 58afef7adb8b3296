// Package sources turns venue listings into normalized record batches.
//
// Producers are registered by key and collected together before an upsert
// run. File feeds and the venues file are plain YAML or JSON documents.
package sources
