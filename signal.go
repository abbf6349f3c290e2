// Process-wide signal relay. Incoming async signals are serialized as
// single bytes through a pipe whose write end is registered exactly once;
// the read end feeds a consumer that forwards fatal signals to the
// foreground child's process group and enforces 128+N exit codes. A
// second fatal signal during shutdown aborts immediately.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
)

// The pipe's write end, registered once per process. A second relay
// initialization is a program bug.
var relayWriteFd atomic.Int32

type signalRelay struct {
	reader *os.File

	child        atomic.Int32 // pgid of the foreground child, 0 when idle
	current      atomic.Value // name of the recipe being run, for SIGINFO
	shuttingDown atomic.Bool
}

// startSignalRelay installs handlers for the fatal signals (and SIGINFO
// where it exists) and starts the consumer. Panics when called twice in
// one process.
func startSignalRelay() (*signalRelay, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	if !relayWriteFd.CompareAndSwap(0, int32(writer.Fd())) {
		panic("signal relay initialized twice")
	}

	relay := &signalRelay{reader: reader}
	relay.current.Store("")

	notify := relaySignals
	if infoSignal != nil {
		notify = append(append([]os.Signal{}, notify...), infoSignal)
	}

	incoming := make(chan os.Signal, 16)
	signal.Notify(incoming, notify...)

	// The handler half: one byte per signal into the pipe.
	go func() {
		for sig := range incoming {
			writer.Write([]byte{byte(signalNumber(sig))})
		}
	}()

	go relay.consume()

	return relay, nil
}

// consume reads the signal stream and applies the shutdown policy.
func (r *signalRelay) consume() {
	buffer := make([]byte, 1)
	for {
		if _, err := r.reader.Read(buffer); err != nil {
			return
		}
		number := int(buffer[0])

		if infoSignal != nil && number == signalNumber(infoSignal) {
			if name := r.current.Load().(string); name != "" {
				fmt.Fprintf(stderr, "j: running recipe `%s`\n", name)
			} else {
				fmt.Fprintf(stderr, "j: idle\n")
			}
			continue
		}

		if r.shuttingDown.Swap(true) {
			// Second fatal signal: abort without waiting for the child.
			os.Exit(128 + number)
		}

		pgid := r.child.Load()
		if pgid == 0 {
			os.Exit(128 + number)
		}

		// Forward to the child's process group and let the runner's wait
		// observe the termination.
		for _, sig := range relaySignals {
			if signalNumber(sig) == number {
				killProcessGroup(int(pgid), sig)
			}
		}
	}
}

// enter registers the foreground child before waiting on it.
func (r *signalRelay) enter(pgid int, recipe string) {
	r.current.Store(recipe)
	r.child.Store(int32(pgid))
}

// leave clears the foreground child after it has been reaped.
func (r *signalRelay) leave() {
	r.child.Store(0)
	r.current.Store("")
}

func (r *signalRelay) interrupted() bool {
	return r.shuttingDown.Load()
}
