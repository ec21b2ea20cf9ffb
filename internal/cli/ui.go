package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// TermUI implements the presentation capability on a plain terminal:
// informational output goes to stdout, choice menus are numbered lists read
// back as an index.
type TermUI struct {
	reader *bufio.Reader
}

func NewTermUI(reader *bufio.Reader) *TermUI {
	return &TermUI{reader: reader}
}

// ShowInfo renders a read-only result. Formatting pairs are ignored on a
// plain terminal; the raw text carries everything.
func (u *TermUI) ShowInfo(text string, pairs [][2]string) {
	fmt.Println(text)
}

// OfferChoices presents candidates as a numbered menu and reads a selection.
// An out-of-range or empty answer dismisses the menu.
func (u *TermUI) OfferChoices(choices []string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("nothing to choose from")
	}
	for i, choice := range choices {
		fmt.Printf("%2d. %s\n", i+1, choice)
	}
	fmt.Print("choice> ")
	line, err := u.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(choices) {
		return "", fmt.Errorf("selection dismissed")
	}
	return choices[n-1], nil
}

// Message reports a one-liner to the user.
func (u *TermUI) Message(text string) {
	log.Print(text)
}
