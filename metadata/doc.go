// Package metadata parses contract metadata documents and resolves
// operation references against them.
//
// A document lists the contract's constructors and messages, each with a
// label and a 4-byte selector:
//
//	{
//	  "source":   {"hash": "0x…"},
//	  "contract": {"name": "flipper", "version": "0.1.0"},
//	  "spec": {
//	    "constructors": [{"label": "new", "selector": "0x9bae9d5e", "args": [...]}],
//	    "messages":     [{"label": "get", "selector": "0x2f865bd9", "mutates": false}]
//	  }
//	}
//
// Operations are resolved by label or by declaration index. An unknown
// reference fails with interfaces.ErrOperationNotFound.
//
// Store fetches documents from any interfaces.MetadataBackend (see package
// storage) keyed by code hash.
package metadata
