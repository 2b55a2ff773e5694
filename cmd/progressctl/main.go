// progressctl reports task progress to a running barline progress module.
//
// A long-running script calls it repeatedly with the same task id:
//
//	progressctl -a /run/user/1000/barline.sock -t backup -f 0.25
//	progressctl -a /run/user/1000/barline.sock -t backup --done
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/nomis52/barline/progress"
)

type Args struct {
	Network  string
	Address  string
	TaskID   string
	Label    string
	Fraction float64
	Done     bool
	Timeout  time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args, err := parseArgs()
	if err != nil {
		return err
	}

	msg := progress.Message{TaskID: args.TaskID}
	if args.Done {
		msg.Done = true
	} else {
		msg.Label = args.Label
		f := args.Fraction
		msg.Fraction = &f
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	conn, err := net.DialTimeout(args.Network, args.Address, args.Timeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", args.Address, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(args.Timeout)); err != nil {
		return err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func parseArgs() (Args, error) {
	var args Args
	flag.StringVar(&args.Address, "addr", "", "Progress server address (socket path or host:port)")
	flag.StringVar(&args.Address, "a", "", "Progress server address (shorthand)")
	flag.StringVar(&args.Network, "network", "", "Network: unix or tcp (inferred from addr when empty)")
	flag.StringVar(&args.TaskID, "task", "", "Task identifier")
	flag.StringVar(&args.TaskID, "t", "", "Task identifier (shorthand)")
	flag.StringVar(&args.Label, "label", "", "Human readable task label")
	flag.Float64Var(&args.Fraction, "fraction", 0, "Completion fraction in [0, 1]")
	flag.Float64Var(&args.Fraction, "f", 0, "Completion fraction (shorthand)")
	flag.BoolVar(&args.Done, "done", false, "Mark the task finished")
	flag.DurationVar(&args.Timeout, "timeout", 5*time.Second, "Dial and write timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nprogressctl - report task progress to barline\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if args.Address == "" {
		return args, fmt.Errorf("addr flag (-a or --addr) is required")
	}
	if args.TaskID == "" {
		return args, fmt.Errorf("task flag (-t or --task) is required")
	}
	if args.Network == "" {
		if strings.Contains(args.Address, "/") {
			args.Network = "unix"
		} else {
			args.Network = "tcp"
		}
	}
	if !args.Done && (args.Fraction < 0 || args.Fraction > 1) {
		return args, fmt.Errorf("fraction must be in [0, 1], got %v", args.Fraction)
	}
	return args, nil
}
