// Package ticketcache keeps a local snapshot of ticket platform listings for
// every venue that has a platform venue id. The matcher reads candidates from
// that snapshot instead of calling the platform per event.
package ticketcache
