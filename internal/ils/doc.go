// Package ils holds decoded views of backend domain records.
//
// Views are reconstructed per request from remote objects and never
// cached beyond request scope; the catalog package's TTL caches hold
// derived lookups (org names, item details), not these structs.
// Tri-state protocol flags stay *bool so unknown is distinguishable
// from false.
package ils
