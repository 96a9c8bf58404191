// Package exchange implements the protocol logic of the envelope scheme.
//
// An exchange is one request/response pair sharing a single symmetric key and
// correlation id. The Initiator runs the sending side: it generates a fresh
// key per exchange, wraps it for the responder, and remembers it in a Store
// until the matching response arrives. The Responder runs the receiving side:
// it unwraps the key, decrypts the request, and hands the key across the
// handler boundary inside a call-scoped Session that must be closed on every
// exit path.
//
// The Store is the only state shared between concurrently in-flight exchanges.
// Entries are single-use and expire if the response never arrives, so an
// aborted exchange costs at most one sweep interval of memory.
package exchange
