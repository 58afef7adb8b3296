// Package ticketmaster wraps the Ticketmaster Discovery API v2 event search.
//
// VenueEvents pages through a venue's listings inside a time window and
// Event.CacheRecord maps each listing onto the catalog ticket cache row with
// its metadata bundle (on-sale window, presales, seat map, supporting acts,
// classification, promoter and status).
package ticketmaster
