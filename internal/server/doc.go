// Package server hosts the Fiber HTTP service that exposes a cache backend to
// other processes. It owns the middleware chain (panic recovery, request IDs)
// and JSON error rendering; the cache and diagnostics routes themselves live
// in the routes sub-package so they can be registered on any app built here.
// Keep exports narrow and accept explicit dependencies.
package server
