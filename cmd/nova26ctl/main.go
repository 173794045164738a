// Copyright 2026 The Nova26 Authors
// This file is part of Nova26.
//
// Nova26 is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Nova26 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Nova26. If not, see <http://www.gnu.org/licenses/>.

// nova26ctl is a debug tool for poking at a running Facade's registry
// and routing log, not a product CLI: config loading, persistence, and
// transports are out of the core's scope, so this only exercises the
// in-process API against a freshly wired Layer.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/nova26"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "nova26ctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out *os.File) error {
	fs := flag.NewFlagSet("nova26ctl", flag.ContinueOnError)
	coordinatorID := fs.String("coordinator", "nova26ctl", "agent id this tool registers as")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		printUsage(out)
		return nil
	}

	layer := nova26.New(*coordinatorID, nova26.Options{})

	switch fs.Arg(0) {
	case "register":
		return cmdRegister(layer, fs.Args()[1:], out)
	case "list":
		return cmdList(layer, out)
	case "send":
		return cmdSend(layer, fs.Args()[1:], out)
	case "routing-log":
		return cmdRoutingLog(layer, out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown subcommand %q", fs.Arg(0))
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "usage: nova26ctl [-coordinator id] <register|list|send|routing-log> ...")
}

func cmdRegister(layer *nova26.Layer, args []string, out *os.File) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	id := fs.String("id", "", "agent id")
	tier := fs.String("tier", string(registry.TierL1), "agent tier (L0-L3)")
	capability := fs.String("capability", "", "comma-separated capability list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("register requires -id")
	}

	var caps []string
	if *capability != "" {
		caps = splitNonEmpty(*capability, ',')
	}
	card := layer.Registry.Register(registry.PartialCard{
		ID:           *id,
		Tier:         registry.Tier(*tier),
		Capabilities: caps,
	})
	fmt.Fprintf(out, "registered %s tier=%s revision=%d\n", card.ID, card.Tier, card.Revision)
	return nil
}

func cmdList(layer *nova26.Layer, out *os.File) error {
	for _, card := range layer.Registry.ListAll() {
		fmt.Fprintf(out, "%s\ttier=%s\torigin=%s\trevision=%d\tcapabilities=%v\n",
			card.ID, card.Tier, card.Origin, card.Revision, card.Capabilities)
	}
	return nil
}

func cmdSend(layer *nova26.Layer, args []string, out *os.File) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	from := fs.String("from", layer.CoordinatorAgentID, "sender agent id")
	to := fs.String("to", "", "recipient agent id, or \"*\" to broadcast")
	message := fs.String("message", "", "notification payload text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return fmt.Errorf("send requires -to")
	}

	build := layer.NewEnvelope(*from)
	env := build(*to, envelope.TypeNotification, map[string]interface{}{"message": *message})
	result, err := layer.Send(env, router.SendOptions{})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "delivered=%v channel=%s latency_ms=%d\n", result.Delivered, result.ChannelType, result.LatencyMs)
	return nil
}

func cmdRoutingLog(layer *nova26.Layer, out *os.File) error {
	for _, entry := range layer.Router.RoutingLogEntries() {
		fmt.Fprintf(out, "%s -> %s delivered=%v error=%q\n", entry.From, entry.To, entry.Delivered, entry.Error)
	}
	return nil
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
