// Package httputil provides shared JSON response helpers for HTTP handlers.
package httputil
