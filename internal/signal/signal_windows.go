//go:build windows

package signal

import "syscall"

var signalMap = map[syscall.Signal]signalInfo{
	syscall.SIGABRT: {"SIGABRT", true},
	syscall.SIGFPE:  {"SIGFPE", true},
	syscall.SIGHUP:  {"SIGHUP", true},
	syscall.SIGILL:  {"SIGILL", true},
	syscall.SIGINT:  {"SIGINT", true},
	syscall.SIGKILL: {"SIGKILL", true},
	syscall.SIGSEGV: {"SIGSEGV", true},
	syscall.SIGTERM: {"SIGTERM", true},
}
