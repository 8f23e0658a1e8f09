// Command dhtctl is an interactive client for exercising a running DHT
// node's wire protocol: get/set plus a handful of routing diagnostics.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/kunwarpradip/distributedchord-dht/internal/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "address of a node to talk to")
	flag.Parse()

	if err := run(*addr); err != nil {
		fmt.Fprintln(os.Stderr, "dhtctl:", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	peer := transport.NewRemotePeer(addr, transport.WithPeerTimeout(3*time.Second))
	ctx := context.Background()

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = home + "/.dhtctl_history"
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Printf("connected to %s (type 'help' for commands)\n", addr)
	for {
		input, err := line.Prompt(fmt.Sprintf("dht[%s]> ", addr))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !dispatch(ctx, peer, input) {
			break
		}
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

func dispatch(ctx context.Context, peer *transport.RemotePeer, input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "quit", "exit":
		return false

	case "help":
		fmt.Println("commands: get <key> | set <key> <value> | successor | predecessor | ping | id [offset] | quit")

	case "get":
		if len(args) != 1 {
			fmt.Println("usage: get <key>")
			return true
		}
		value, found, err := peer.Get(ctx, args[0])
		if err != nil {
			fmt.Println("error:", err)
		} else if !found {
			fmt.Println("(miss)")
		} else {
			fmt.Println(value)
		}

	case "set":
		if len(args) < 2 {
			fmt.Println("usage: set <key> <value>")
			return true
		}
		if err := peer.Set(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			fmt.Println("error:", err)
		} else {
			fmt.Println("ok")
		}

	case "successor":
		addr, err := peer.Successor(ctx)
		printResult(addr, err)

	case "predecessor":
		addr, has, err := peer.Predecessor(ctx)
		if err != nil {
			fmt.Println("error:", err)
		} else if !has {
			fmt.Println("(none)")
		} else {
			fmt.Println(addr)
		}

	case "ping":
		if err := peer.Ping(ctx); err != nil {
			fmt.Println("error:", err)
		} else {
			fmt.Println("pong")
		}

	case "id":
		var offset uint64
		if len(args) == 1 {
			fmt.Sscanf(args[0], "%d", &offset)
		}
		id, err := peer.ID(ctx, offset)
		if err != nil {
			fmt.Println("error:", err)
		} else {
			fmt.Println(id)
		}

	default:
		fmt.Printf("unknown command %q (type 'help')\n", cmd)
	}
	return true
}

func printResult(value string, err error) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(value)
}
