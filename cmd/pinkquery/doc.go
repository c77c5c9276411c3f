// Package main (cmd/pinkquery) is the command-line client for confidential
// contract queries.
//
// Typical session against a development worker:
//
//	pinkquery keygen --key-file me.key --passphrase secret
//	pinkquery publish-metadata --code-hash 0x… --file flipper.json \
//	    --metadata-storage file:///var/lib/pinkquery/metadata
//	pinkquery deploy --code-hash 0x… --cluster 0x…01 --args 0x01 \
//	    --metadata-storage file:///var/lib/pinkquery/metadata
//	pinkquery query --contract 0x… --code-hash 0x… --message get \
//	    --key-file me.key --passphrase secret \
//	    --metadata-storage file:///var/lib/pinkquery/metadata
//
// Several --metadata-storage locations may be given; they are tried in order.
// The worker can be addressed directly with --worker or discovered with a DNS
// SRV name passed to --srv.
package main
