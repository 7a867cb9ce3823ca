package main

import (
	"errors"
	"fmt"
	"os"
)

const cliVersion = "0.2.0"

// userError carries a message meant for the person at the terminal.
// It exits with status 1; anything else exits with 2.
type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		handleError(err)
	}
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(err, &uerr) {
		printError(os.Stderr, "%s", uerr.Error())
		os.Exit(1)
	}

	printError(os.Stderr, "unexpected error: %v", err)
	os.Exit(2)
}
