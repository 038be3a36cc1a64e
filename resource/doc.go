// Package resource holds the table of protected resources and resolves a
// resource and device class to the target URI handed to a client after a
// successful capability redemption.
//
// The registry is built once at startup and never changes afterwards, so it
// can be shared by every request without locking.
//
// Resources are usually loaded from a JSON file:
//
//	[
//	  {"id": "chat", "displayName": "Chat", "secret": "AbCdEf123"},
//	  {"id": "news", "displayName": "News", "secret": "XyZ987"}
//	]
//
// A secret can be supplied or overridden through the environment with
// GATE_RESOURCE_<ID>_SECRET, where <ID> is the resource identifier upper-cased
// with '-' replaced by '_'.
package resource
