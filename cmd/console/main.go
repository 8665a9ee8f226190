// Package main is the entry point for the admin console CLI.
package main

import (
	"errors"
	"log"
	"os"
	"runtime/debug"

	"github.com/jrsteele09/go-admin-console/console"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	console.SetVersion(version)
	returnError = console.Execute()
	return returnError
}
