package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/feedbackd/internal/protocol"
	"github.com/mattjoyce/feedbackd/internal/udp"
)

// dataFlags collects repeated --data key=value pairs.
type dataFlags map[string]any

func (d dataFlags) String() string {
	b, _ := json.Marshal(map[string]any(d))
	return string(b)
}

// Set parses key=value. Values that parse as JSON keep their JSON type;
// anything else is a string.
func (d dataFlags) Set(v string) error {
	key, raw, ok := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		parsed = raw
	}
	d[key] = parsed
	return nil
}

func runSend(args []string) int {
	if hasHelpFlag(args) {
		printSendHelp()
		return 0
	}

	var command string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:12345", "Controller listen address")
	replyPort := fs.Int("reply-port", 12346, "Local port replies to getfeedbacks/getvariables arrive on")
	sigType := fs.String("type", string(protocol.TypeInteraction), "Signal type: interaction, control or controller-config")
	timeout := fs.Duration("timeout", 2*time.Second, "How long to wait for a reply")
	data := dataFlags{}
	fs.Var(data, "data", "Payload entry key=value (repeatable; JSON values allowed)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if command == "" && fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	sig, err := buildSignal(protocol.Type(*sigType), command, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if !expectsReply(sig) {
		if err := udp.Send(*addr, protocol.JSONCodec{}, sig); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			return 1
		}
		fmt.Printf("sent %s %s to %s\n", sig.Type, sig.Command(), *addr)
		return 0
	}

	replyAddr := net.JoinHostPort("", strconv.Itoa(*replyPort))
	reply, err := udp.Request(context.Background(), *addr, replyAddr, protocol.JSONCodec{}, sig, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No reply: %v\n", err)
		return 1
	}
	out, err := json.MarshalIndent(reply.Data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render reply: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func buildSignal(t protocol.Type, command string, data map[string]any) (*protocol.Signal, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown signal type %q", t)
	}
	sig := &protocol.Signal{Type: t, Data: data}
	if command == "" {
		return sig, nil
	}
	if t != protocol.TypeInteraction {
		return nil, errors.New("commands are only carried by interaction signals")
	}
	sig.Commands = []protocol.Command{protocol.ParseCommand(command)}
	return sig, nil
}

func expectsReply(sig *protocol.Signal) bool {
	switch sig.Command() {
	case protocol.CmdGetFeedbacks, protocol.CmdGetVariables:
		return true
	}
	return false
}

func printSendHelp() {
	fmt.Println("Usage: feedbackd send [command] [--addr HOST:PORT] [--type TYPE] [--data key=value ...]")
	fmt.Println()
	fmt.Println("Commands: play, pause, stop, quit, sendinit, getfeedbacks, getvariables.")
	fmt.Println("getfeedbacks and getvariables wait for the reply on --reply-port and print it.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  feedbackd send --data _feedback=thermometer")
	fmt.Println("  feedbackd send sendinit")
	fmt.Println("  feedbackd send play")
	fmt.Println("  feedbackd send --type control --data cl_output=0.7")
	fmt.Println("  feedbackd send getvariables")
}
