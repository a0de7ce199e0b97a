// Package sesiweb is a client for the SideFX Web API. It exchanges
// application credentials for a bearer token, posts JSON command envelopes
// to the API endpoint, and exposes the published download and license
// commands as typed operations: listing daily builds, resolving and fetching
// build installers, and acquiring non-commercial licenses.
//
// A Client authenticates once, in New, and reuses that token for its whole
// life. Construct a new Client when the token expires, or seed one from a
// cached token with WithAccessToken.
package sesiweb
