// Package signal maps between signal names and numbers across platforms.
package signal

import (
	"os"
	"syscall"
)

var nameToSignal = map[string]syscall.Signal{}

func init() {
	for sig, info := range signalMap {
		nameToSignal[info.name] = sig
	}
}

type signalInfo struct {
	name          string
	isTermination bool
}

// Lookup returns the signal for a name like "SIGTERM".
func Lookup(name string) (syscall.Signal, bool) {
	sig, ok := nameToSignal[name]
	return sig, ok
}

// Name returns the conventional name of the signal. Signals outside the
// platform map fall back to their String form.
func Name(sig os.Signal) string {
	if num, ok := sig.(syscall.Signal); ok {
		if info, ok := signalMap[num]; ok {
			return info.name
		}
	}
	return sig.String()
}

// IsTermination reports whether the signal conventionally terminates a
// process.
func IsTermination(sig os.Signal) bool {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return false
	}
	info, ok := signalMap[num]
	return ok && info.isTermination
}
