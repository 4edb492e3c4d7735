// Chronicle is the CLI front end of the expression ledger.
package main

import "github.com/mesh-intelligence/chronicle/internal/cli"

func main() {
	cli.Execute()
}
