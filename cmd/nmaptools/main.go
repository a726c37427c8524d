// Command nmaptools exposes nmap scans as tools over MCP, HTTP or the
// command line.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
