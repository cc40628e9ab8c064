package s3

// Placeholder for an S3 backed Store implementation.
//
// Intent: provide a production ready persistent store using AWS S3 (or
// compatible APIs) implementing the store.Store interface, mapping
// collections to key prefixes. This file intentionally remains a stub so
// that downstream contributors can supply credentials / client wiring
// without pulling an AWS dependency into minimal builds. If you implement
// this, keep the dependency surface narrow and make the configuration
// (bucket, prefix, ACL, encryption) explicit via a small Config struct.
