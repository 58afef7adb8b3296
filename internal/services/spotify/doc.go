// Package spotify searches the Spotify Web API for artists during enrichment.
//
// Access uses the client-credentials grant; the token is cached and refreshed
// lazily shortly before expiry or after a 401. SearchArtist accepts a result
// only when the names agree and its popularity clears the floor for that kind
// of agreement: exact names need the lower floor, partial ones the higher.
package spotify
