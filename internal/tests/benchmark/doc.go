// Package benchmark provides performance benchmarks for the stockgate
// request path: token issue and verify, credential hashing and counter
// increments against both counter stores.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run only the rate limiter with a longer bench time:
//
//	go test -bench=BenchmarkRateLimiter -benchmem -benchtime=10s ./internal/tests/benchmark/...
//
// Generate performance report:
//
//	go test -bench=. -benchmem -count=5 ./internal/tests/benchmark/... | tee benchmark.txt
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
