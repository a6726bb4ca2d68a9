// Command connstate-demo drives a simulated relay handshake through
// connstate.ConnectionStateCore and prints the connection_state_changed
// emissions of the new connection attempt, the way cmd/cli/client.go
// drives a real rpc25519 round trip and prints the result. With
// -reconnect, the old client's initial connect and disconnect happen
// before the printer is registered and are not printed.
package main

import (
	"crypto/rand"
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"github.com/apoorvam/goterminal"
	cristalbase64 "github.com/cristalhq/base64"
	"golang.org/x/term"

	"github.com/relaydoc/connstate"
)

// serialize is the single-consumer lock any multi-threaded caller must
// hold around every call into the core: the relay simulator's background
// goroutines (slow join, leave delay, catch-up delay) and the main
// goroutine's own calls all take it.
var serialize sync.Mutex

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var write = flag.Bool("write", true, "open a Write connection (must await Join) instead of Read")
	var slowJoin = flag.Duration("slow-join", 0, "delay before the simulated relay admits the new client id to quorum")
	var reconnect = flag.Bool("reconnect", false, "simulate a reconnect: start Connected, then disconnect and race Join against the old client's Leave")
	var leaveDelay = flag.Duration("leave-delay", 0, "delay before the simulated relay removes the old client id from quorum (0 disables the Leave entirely, to exercise the timeout path)")
	var leaveWait = flag.Duration("leave-wait", connstate.DefaultLeaveWait, "max_client_leave_wait override")
	var catchUp = flag.Bool("catch-up", false, "wrap the core in a CatchUpGate and hold Connected back until the delta stream catches up")
	var catchUpDelay = flag.Duration("catch-up-delay", 0, "delay before the simulated delta stream reports caught up")
	var quiet = flag.Bool("quiet", false, "skip the live terminal line, just log transitions")

	flag.Parse()

	cfg := connstate.LoadConfig()
	if configured, ok := cfg.GetBool("catch_up_before_declaring_connected"); ok {
		*catchUp = configured
	}

	telemetry := newLogTelemetry()
	quorum := newMemQuorum()
	owner := &demoOwner{
		shouldJoinWrite: *write,
		leaveWait:       *leaveWait,
		haveLeaveWait:   *leaveWait != connstate.DefaultLeaveWait,
		cfg:             cfg,
		quorum:          quorum,
		quorumReady:     true,
	}

	core := connstate.NewCore(owner, telemetry, connstate.CoreOptions{})
	core.InitProtocol(quorum)

	var termWriter *goterminal.Writer
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if isTTY && !*quiet {
		termWriter = goterminal.New(os.Stdout)
	}

	render := func(newState, oldState connstate.ConnectionState, reason *string) {
		r := "-"
		if reason != nil {
			r = *reason
		}
		line := newState.String() + " (was " + oldState.String() + ", reason " + r + ")"
		if termWriter != nil {
			termWriter.Clear()
			termWriter.Write([]byte(line + "\n"))
			termWriter.Print()
		} else {
			log.Printf("connstate: transition %s", line)
		}
	}

	var mode connstate.ConnectionMode = connstate.Read
	if *write {
		mode = connstate.Write
	}

	var oldID string
	if *reconnect {
		oldID = newClientID()
		serialize.Lock()
		quorum.join(oldID)
		core.OnConnect(mode, connstate.ConnectDetails{ClientID: oldID})
		core.OnDisconnect("simulated-reconnect")
		serialize.Unlock()
	}

	deltaStream := newDemoDeltaStream(100)
	if *catchUp {
		gate := connstate.NewCatchUpGate(core, deltaStream)
		gate.OnTransition(render)
	} else {
		core.OnTransition(render)
	}

	newID := newClientID()
	if *slowJoin > 0 {
		go func() {
			time.Sleep(*slowJoin)
			serialize.Lock()
			quorum.join(newID)
			serialize.Unlock()
		}()
	} else {
		serialize.Lock()
		quorum.join(newID)
		serialize.Unlock()
	}

	if *leaveDelay > 0 && *reconnect {
		go func() {
			time.Sleep(*leaveDelay)
			serialize.Lock()
			quorum.leave(oldID)
			serialize.Unlock()
		}()
	}

	serialize.Lock()
	core.OnConnect(mode, connstate.ConnectDetails{ClientID: newID})
	serialize.Unlock()

	if *catchUp && *catchUpDelay > 0 {
		go func() {
			time.Sleep(*catchUpDelay)
			serialize.Lock()
			deltaStream.advanceTo(100)
			serialize.Unlock()
		}()
	}

	// give the simulated goroutines a chance to run before exiting.
	time.Sleep(*slowJoin + *leaveDelay + *catchUpDelay + 50*time.Millisecond)

	telemetry.summary()
}

// newClientID mints an opaque id the way hdr.go/rand.go do:
// cristalbase64.URLEncoding over random bytes.
func newClientID() string {
	var b [9]byte
	_, err := rand.Read(b[:])
	panicOn(err)
	return cristalbase64.URLEncoding.EncodeToString(b[:])
}
