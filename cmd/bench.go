package cmd

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	benchOps       int
	benchRepeats   int
	benchValueSize int
)

// benchCmd fires concurrent PUT/GET load at a set of entry nodes and
// reports throughput, the Go counterpart of the original bench.py
// harness. It speaks to nodes purely over HTTP, as an external load
// generator would, so it depends on no internal chord package.
var benchCmd = &cobra.Command{
	Use:   "bench <entry_node> [entry_node...]",
	Short: "Measure PUT/GET throughput against a set of entry nodes",
	Args:  cobra.MinimumNArgs(1),
	Run:   runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVar(&benchOps, "ops", 1000, "operations per run, per PUT and GET phase")
	benchCmd.Flags().IntVar(&benchRepeats, "repeats", 5, "number of runs to repeat")
	benchCmd.Flags().IntVar(&benchValueSize, "value-size", 100, "bytes per value")
}

func runBench(cmd *cobra.Command, nodes []string) {
	client := &http.Client{Timeout: 5 * time.Second}

	for run := 0; run < benchRepeats; run++ {
		keys := make([]string, benchOps)
		for i := range keys {
			keys[i] = fmt.Sprintf("k%d_%d", run, i)
		}
		value := randomValue(benchValueSize)

		putOK, putDur := benchPhase(keys, nodes, func(node, key string) bool {
			return benchPut(client, node, key, value)
		})
		fmt.Printf("[run %d] PUT: %d/%d in %s = %.1f ops/s\n",
			run, putOK, benchOps, putDur, opsPerSecond(putOK, putDur))

		getOK, getDur := benchPhase(keys, nodes, func(node, key string) bool {
			return benchGet(client, node, key)
		})
		fmt.Printf("[run %d] GET: %d/%d in %s = %.1f ops/s\n",
			run, getOK, benchOps, getDur, opsPerSecond(getOK, getDur))
	}
}

// benchPhase issues one operation per key against a randomly chosen
// entry node, concurrently, and reports how many succeeded and how
// long the phase took wall-clock.
func benchPhase(keys, nodes []string, op func(node, key string) bool) (ok int, dur time.Duration) {
	start := time.Now()

	results := make(chan bool, len(keys))
	for _, key := range keys {
		node := nodes[randIndex(len(nodes))]
		go func(node, key string) { results <- op(node, key) }(node, key)
	}
	for range keys {
		if <-results {
			ok++
		}
	}

	return ok, time.Since(start)
}

func benchPut(client *http.Client, node, key, value string) bool {
	req, err := http.NewRequest(http.MethodPut, "http://"+node+"/storage/"+key, bytes.NewBufferString(value))
	if err != nil {
		return false
	}
	req.Close = true
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func benchGet(client *http.Client, node, key string) bool {
	req, err := http.NewRequest(http.MethodGet, "http://"+node+"/storage/"+key, nil)
	if err != nil {
		return false
	}
	req.Close = true
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func opsPerSecond(ok int, dur time.Duration) float64 {
	if dur <= 0 {
		return 0
	}
	return float64(ok) / dur.Seconds()
}

const randomValueAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomValue builds a random string of length n; benchmarking only
// cares about size, not content.
func randomValue(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = randomValueAlphabet[randIndex(len(randomValueAlphabet))]
	}
	return string(buf)
}

// randIndex returns a uniform random index in [0, n) using a
// cryptographically seeded source; bench load doesn't need anything
// fancier, and this avoids hand-rolling a PRNG.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
