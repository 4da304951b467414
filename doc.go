/*
Package kvconf holds the native option objects of a TiKV-style storage node
and the helpers they are built from.

A node runs two LSM engines: the kv engine ("rocksdb") with the default,
lock, write and raft column families, and the raft log engine ("raftdb")
with a single default column family. The config package decodes a TOML or
YAML document into a typed tree, validates it against the filesystem and
compiles each engine section into a DBOptions value plus one CFOptions per
column family. This package defines those targets: table options with block
cache and bloom filter, prefix extractors, table properties collectors, the
rate limiter, statistics and the event listener attached to each engine.

RenderOptions prints built options in OPTIONS file format, and Fingerprint
hashes that rendering so two nodes can compare effective settings.

# Concurrency

Option objects are plain values and are not safe for concurrent mutation.
Statistics, RateLimiter and LoggingEventListener are safe for concurrent
use by engine threads.

Reference: RocksDB v10.7.5 include/rocksdb/options.h
*/
package kvconf
