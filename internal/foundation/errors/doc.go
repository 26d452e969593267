// Package errors provides classified errors for the appliance ledger.
//
// Every failure surfaced by the core carries a category (what kind of
// condition it is), a severity, and a retry strategy. The HTTP adapter maps
// categories to transport status codes so handlers never hard-code them.
package errors
