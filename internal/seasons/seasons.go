// ABOUTME: Season to months lookup and the interactive menu loop
// ABOUTME: Reads a number 1-4 and reports the months of that season
package seasons

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoInput is returned when input ends before a valid choice
var ErrNoInput = errors.New("input ended before a season was chosen")

// Season is a named season and its months. Boundary months belong to both
// neighbouring seasons.
type Season struct {
	Number int
	Name   string
	Months []string
}

func (s Season) String() string {
	return fmt.Sprintf("%s:\t%s", s.Name, strings.Join(s.Months, ", "))
}

var all = []Season{
	{1, "Spring", []string{"March", "April", "May", "June"}},
	{2, "Summer", []string{"June", "July", "August", "September"}},
	{3, "Autumn", []string{"September", "October", "November", "December"}},
	{4, "Winter", []string{"December", "January", "February", "March"}},
}

const (
	greeting = "Hello World! We're Rocking!"
	ask      = "Enter a number 1, 2, 3 or 4: "
	invalid  = "Invalid number"
)

// Lookup returns the season numbered n (1-4)
func Lookup(n int) (Season, bool) {
	if n < 1 || n > len(all) {
		return Season{}, false
	}
	return all[n-1], true
}

// Prompt greets, then reads whitespace separated tokens from r until one is a
// valid season number, re-asking after each invalid token. The chosen season
// is written to w.
func Prompt(r io.Reader, w io.Writer) (Season, error) {
	fmt.Fprintln(w, greeting)
	fmt.Fprintln(w, ask)

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	for scanner.Scan() {
		n, err := strconv.Atoi(scanner.Text())
		if err == nil {
			if season, ok := Lookup(n); ok {
				fmt.Fprintln(w, season)
				return season, nil
			}
		}
		fmt.Fprintf(w, "%s\n%s\n", invalid, ask)
	}

	if err := scanner.Err(); err != nil {
		return Season{}, fmt.Errorf("failed to read choice: %w", err)
	}
	return Season{}, ErrNoInput
}
