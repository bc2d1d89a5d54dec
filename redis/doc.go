// Package redis provides a Redis-backed storage engine for the tokenbucket
// package, enforcing a single token budget per key across any number of
// application instances.
//
// # Usage
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL:  "redis://localhost:6379/0",
//		RetryAttempts:  3,
//		RetryInterval:  5 * time.Second,
//		ConnectTimeout: 30 * time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	storage := redis.NewStorage(client,
//		redis.WithPrefix("myapp:rate:"),
//		redis.WithTTL(time.Hour),
//	)
//
//	limiter, err := tokenbucket.NewLimiter(10, 20, storage)
//
// # Atomicity
//
// Replenish and Consume each run as one server-side Lua script, so the
// read-compute-write cycle cannot interleave between clients. The scripts
// preserve the same semantics as the in-memory engine: capped addition on
// replenish, all-or-nothing debit on consume, and a timestamp-regression
// guard that ignores updates from clients with lagging clocks.
//
// # Expiry
//
// Unlike the in-memory engine, bucket hashes can be given a TTL (see
// WithTTL) so that idle keys do not accumulate in Redis forever. The TTL is
// refreshed on every replenishment; an expired bucket is simply recreated at
// full capacity the next time its key is seen, which is the same state a
// fresh key starts in.
package redis
