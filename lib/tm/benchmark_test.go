package tm

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func BenchmarkReadOnlySingleWord(b *testing.B) {
	region := newTestRegion(b, 64)
	commitWord(b, region, region.Start(), 1)

	buf := make([]byte, testWord)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		txn, _ := region.Begin(true)
		if !txn.Read(region.Start(), testWord, buf) || !txn.Commit() {
			b.Fatal("read-only transaction aborted on a quiet region")
		}
	}
}

func BenchmarkWriteCommitSingleWord(b *testing.B) {
	region := newTestRegion(b, 64)

	buf := make([]byte, testWord)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		binary.LittleEndian.PutUint64(buf, uint64(i))
		txn, _ := region.Begin(false)
		if !txn.Write(buf, testWord, region.Start()) || !txn.Commit() {
			b.Fatal("uncontended write transaction aborted")
		}
	}
}

func BenchmarkReadModifyWrite(b *testing.B) {
	region := newTestRegion(b, 64)

	buf := make([]byte, testWord)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		txn, _ := region.Begin(false)
		if !txn.Read(region.Start(), testWord, buf) {
			b.Fatal("read aborted")
		}
		binary.LittleEndian.PutUint64(buf, binary.LittleEndian.Uint64(buf)+1)
		if !txn.Write(buf, testWord, region.Start()) || !txn.Commit() {
			b.Fatal("uncontended transaction aborted")
		}
	}
}

func BenchmarkParallelDisjointWriters(b *testing.B) {
	const words = 1 << 10
	region := newTestRegion(b, words)

	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		buf := make([]byte, testWord)
		for pb.Next() {
			addr := wordAddr(region, rng.Intn(words))
			binary.LittleEndian.PutUint64(buf, rng.Uint64())
			for {
				txn, _ := region.Begin(false)
				if txn.Write(buf, testWord, addr) && txn.Commit() {
					break
				}
			}
		}
	})
}

func BenchmarkParallelReaders(b *testing.B) {
	const words = 64
	region := newTestRegion(b, words)

	b.RunParallel(func(pb *testing.PB) {
		buf := make([]byte, words*testWord)
		for pb.Next() {
			for {
				txn, _ := region.Begin(true)
				if txn.Read(region.Start(), uint64(len(buf)), buf) && txn.Commit() {
					break
				}
			}
		}
	})
}
