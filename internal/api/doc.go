// Package api is the client for the remote price and ledger service.
//
// Endpoints (relative to the configured base URL):
//   - GET    /quote/{ticker}[?period=weekly]
//   - GET    /portfolio
//   - POST   /portfolio/{ticker}/{add|subtract}   body {"price": n}
//   - GET    /balance
//   - POST   /balance/{amount}/{add|subtract}
//   - GET    /watchlist
//   - POST   /watchlist/{ticker}
//   - DELETE /watchlist/{ticker}
//
// Response shapes vary between service versions (a bare array, a wrapped
// object, a single record). The decoders in this package normalize them so
// callers only ever see models types.
package api
