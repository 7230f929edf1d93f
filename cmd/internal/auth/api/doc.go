// Package authapi is the HTTP binding for the session protocol: the five
// auth endpoints, the bearer-token authentication gate, refresh-cookie
// transport, audit logging, and per-IP login throttling.
package authapi
