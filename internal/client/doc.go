// Package client is an HTTP client for the mailbot gateway API.
//
// It is the transport behind the label store and the labeling workflow. A
// non-2xx response is returned as *APIError carrying the gateway's
// caller-facing message.
package client
