package bench

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ryanmaxin/goTM/cmd/util"
	"github.com/Ryanmaxin/goTM/lib/logging"
	"github.com/Ryanmaxin/goTM/lib/tm"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	wordSize       = 8
	initialBalance = 1000
)

var (
	// BenchCmd represents the bench command
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Concurrency benchmark for the transactional memory engine",
		Long:    util.WrapString("Runs a multi-threaded account-transfer workload over a shared region and reports throughput, latency percentiles and abort rates. The workload transfers money between random accounts in read-write transactions and audits the total balance in read-only transactions; the total must be conserved."),
		RunE:    run,
		PreRunE: processBenchConfig,
	}

	benchThreads   = 10
	benchAccounts  = 100
	benchReadRatio = 10
	benchStripes   = 1 << 16
	benchCSVPath   = ""
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitEnvConfig)

	// add flags
	key := "threads"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent worker threads"))
	key = "accounts"
	BenchCmd.Flags().Int(key, 100, util.WrapString("Number of accounts in the shared region"))
	key = "read-ratio"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Percentage of operations that are read-only audits"))
	key = "stripes"
	BenchCmd.Flags().Int(key, 1<<16, util.WrapString("Size of the lock stripe table (power of two)"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchThreads = viper.GetInt("threads")
	benchAccounts = viper.GetInt("accounts")
	benchReadRatio = viper.GetInt("read-ratio")
	benchStripes = viper.GetInt("stripes")
	benchCSVPath = viper.GetString("csv")

	logging.InitLoggers(viper.GetString("log-level"))

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Concurrency benchmark for the goTM engine")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Threads:    %d\n", benchThreads)
	fmt.Printf("  Accounts:   %d\n", benchAccounts)
	fmt.Printf("  Read ratio: %d%%\n", benchReadRatio)
	fmt.Printf("  Stripes:    %d\n", benchStripes)
	fmt.Println()

	region, err := tm.New(uint64(benchAccounts)*wordSize, wordSize, &tm.Options{NumStripes: benchStripes})
	if err != nil {
		return err
	}
	defer region.Close()

	if err := fund(region); err != nil {
		return err
	}

	var (
		aborts   atomic.Uint64
		registry = gometrics.NewRegistry()
		timer    = gometrics.GetOrRegisterTimer("txn", registry)
		results  = make(map[string]testing.BenchmarkResult)
	)

	fmt.Println("starting benchmark...")

	mixedResult := testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(benchThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			for pb.Next() {
				start := time.Now()
				if rng.Intn(100) < benchReadRatio {
					audit(region, &aborts)
				} else {
					transfer(region, rng, &aborts)
				}
				timer.UpdateSince(start)
			}
		})
	})

	results["mixed"] = mixedResult
	printResult("mixed", mixedResult)

	// latency percentiles from the go-metrics timer
	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("latency p50=%s p95=%s p99=%s\n",
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
	fmt.Printf("aborts: %d (engine-level conflicts, retried by the workload)\n", aborts.Load())

	// The invariant of the workload: transfers move money around but the
	// total must be exactly what funding deposited.
	total, err := auditTotal(region)
	if err != nil {
		return err
	}
	expected := uint64(benchAccounts) * initialBalance
	if total != expected {
		return fmt.Errorf("conservation violated: total %d, expected %d", total, expected)
	}
	fmt.Printf("conservation check passed (total=%d)\n", total)

	if benchCSVPath != "" {
		if err := writeResultsToCSV(benchCSVPath, results, aborts.Load()); err != nil {
			return err
		}
		fmt.Printf("results saved to %s\n", benchCSVPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Workload operations
// --------------------------------------------------------------------------

// accountAddr returns the shared address of the i-th account balance
func accountAddr(region tm.ISharedMemory, i int) tm.Address {
	return region.Start() + tm.Address(uint64(i)*wordSize)
}

// fund deposits the initial balance into every account in one transaction
func fund(region tm.ISharedMemory) error {
	for {
		txn, err := region.Begin(false)
		if err != nil {
			return err
		}

		word := make([]byte, wordSize)
		binary.LittleEndian.PutUint64(word, initialBalance)

		ok := true
		for i := 0; i < benchAccounts; i++ {
			if !txn.Write(word, wordSize, accountAddr(region, i)) {
				ok = false
				break
			}
		}
		if ok && txn.Commit() {
			return nil
		}
	}
}

// transfer moves a random amount between two random accounts, retrying
// until the transaction commits
func transfer(region tm.ISharedMemory, rng *rand.Rand, aborts *atomic.Uint64) {
	from := rng.Intn(benchAccounts)
	to := rng.Intn(benchAccounts)
	if from == to {
		to = (to + 1) % benchAccounts
	}
	amount := uint64(rng.Intn(10))

	for {
		txn, _ := region.Begin(false)

		var (
			fromWord = make([]byte, wordSize)
			toWord   = make([]byte, wordSize)
		)

		if !txn.Read(accountAddr(region, from), wordSize, fromWord) ||
			!txn.Read(accountAddr(region, to), wordSize, toWord) {
			aborts.Add(1)
			continue
		}

		fromBalance := binary.LittleEndian.Uint64(fromWord)
		toBalance := binary.LittleEndian.Uint64(toWord)

		// never overdraw, the balances are unsigned
		moved := amount
		if moved > fromBalance {
			moved = fromBalance
		}

		binary.LittleEndian.PutUint64(fromWord, fromBalance-moved)
		binary.LittleEndian.PutUint64(toWord, toBalance+moved)

		if !txn.Write(fromWord, wordSize, accountAddr(region, from)) ||
			!txn.Write(toWord, wordSize, accountAddr(region, to)) {
			aborts.Add(1)
			continue
		}

		if txn.Commit() {
			return
		}
		aborts.Add(1)
	}
}

// audit sums all balances in a read-only transaction, retrying until it
// commits. The sum it observes must always equal the funded total, no
// matter how many transfers are in flight.
func audit(region tm.ISharedMemory, aborts *atomic.Uint64) {
	for {
		total, ok := trySum(region)
		if ok {
			expected := uint64(benchAccounts) * initialBalance
			if total != expected {
				// a torn snapshot would be an engine bug, not workload noise
				panic(fmt.Sprintf("audit observed %d, expected %d", total, expected))
			}
			return
		}
		aborts.Add(1)
	}
}

// auditTotal returns the committed total after the benchmark has finished
func auditTotal(region tm.ISharedMemory) (uint64, error) {
	for {
		if total, ok := trySum(region); ok {
			return total, nil
		}
	}
}

// trySum reads all account balances in one read-only transaction
func trySum(region tm.ISharedMemory) (uint64, bool) {
	txn, _ := region.Begin(true)

	buf := make([]byte, benchAccounts*wordSize)
	if !txn.Read(region.Start(), uint64(len(buf)), buf) {
		return 0, false
	}
	if !txn.Commit() {
		return 0, false
	}

	var total uint64
	for i := 0; i < benchAccounts; i++ {
		total += binary.LittleEndian.Uint64(buf[i*wordSize:])
	}
	return total, true
}

// --------------------------------------------------------------------------
// Result reporting
// --------------------------------------------------------------------------

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, aborts uint64) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec",
		"Threads", "Accounts", "ReadRatio", "Stripes", "Aborts",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.Itoa(benchThreads),
			strconv.Itoa(benchAccounts),
			strconv.Itoa(benchReadRatio),
			strconv.Itoa(benchStripes),
			strconv.FormatUint(aborts, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
