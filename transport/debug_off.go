//go:build !quicdebug

package transport

func debug(format string, values ...interface{}) {}
