// Package http contains the HTTP request adapters: thin handlers that parse
// and validate the wire shape, delegate to the verification engine, apply
// staged mutations through the record store and serialize verdicts.
package http
