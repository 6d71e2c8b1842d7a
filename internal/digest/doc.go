// Package digest is the client for the mailbot digest backend.
//
// The backend summarizes emails, builds a daily digest and sends digest
// notifications. Every request carries the caller's access token in the
// "token" query parameter.
package digest
