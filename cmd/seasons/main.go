// ABOUTME: Entry point for the seasons menu
// ABOUTME: Asks for a season number and prints its months
package main

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/chime/internal/seasons"
)

func main() {
	if _, err := seasons.Prompt(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
