// Package textutil provides title normalization and string similarity for
// record linkage.
//
// NormalizeTitle folds case, strips accents, and collapses punctuation and
// whitespace so exact equality on normalized titles is the fallback identity
// test. Similarity scores two titles in [0,1] for cross-source ranking.
package textutil
