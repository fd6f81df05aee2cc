// Rollupd is the daemon entry point for the aggregate rollup engine: it
// wires the writer, rollup engine, scheduler, and reader together against
// a live Cassandra cluster and runs until terminated. Its flag/signal
// handling follows the teacher's cassabon.go shape (a -conf YAML file,
// SIGHUP log-file reopen, SIGINT/SIGTERM shutdown); everything it wires together
// is new to this repository.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	var confFile string
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&confFile, "conf", "", "path to YAML configuration file")
	flag.Parse()

	if *showVersion {
		fmt.Println("rollupd", version)
		os.Exit(0)
	}

	if err := run(confFile); err != nil {
		fmt.Fprintf(os.Stderr, "rollupd: %v\n", err)
		os.Exit(1)
	}
}
