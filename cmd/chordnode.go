package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"chordkv/chord"

	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
)

var (
	idleTimeout time.Duration
	maxConns    int
)

// chordnodeCmd starts one ring node: port (required) and an optional
// JSON peer-address array, mirroring the original server.py's
// "server.py <port> [<peers_json>]" invocation.
var chordnodeCmd = &cobra.Command{
	Use:   "chordnode <port> [peers_json]",
	Short: "Start a Chord ring key-value node",
	Long: `Start a Chord ring key-value node listening on the given port.
An optional second argument is a JSON array of peer "host:port" addresses
(may include this node's own address, may be omitted for a one-node ring).`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runChordnode,
}

func init() {
	rootCmd.AddCommand(chordnodeCmd)
	chordnodeCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0,
		"shut down this long after the node starts serving, whether or not requests arrive (0 disables the watchdog)")
	chordnodeCmd.Flags().IntVar(&maxConns, "max-conns", 0,
		"cap concurrent inbound connections (0 = unlimited)")
}

func runChordnode(cmd *cobra.Command, args []string) {
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 49152 || port > 65535 {
		fmt.Println("error: port must be an integer in range 49152-65535")
		os.Exit(1)
	}

	var peers []string
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &peers); err != nil {
			fmt.Println("error: peers argument must be a JSON array of strings:", err)
			os.Exit(1)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		fmt.Println("error: resolve hostname:", err)
		os.Exit(1)
	}
	selfAddress := fmt.Sprintf("%s:%d", hostname, port)

	node, err := chord.NewNode(chord.Config{
		SelfAddress: selfAddress,
		Peers:       peers,
		IdleTimeout: idleTimeout,
	})
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		fmt.Println("error: bind:", err)
		os.Exit(1)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	if err := node.Serve(context.Background(), ln); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
