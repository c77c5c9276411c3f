// Package queryhandler serves the worker routes of the confidential query
// protocol over HTTP and provides a client for the GetInfo route.
package queryhandler
