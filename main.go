// The main package for the rankings executable.
package main

import (
	"github.com/courtside/rankings/cmd"
)

func main() {
	cmd.Execute()
}
