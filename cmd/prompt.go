package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/platelog"
)

// errCancelled is returned by prompts when the user asked to cancel.
var errCancelled = errors.New("cancelled")

// prompter asks questions on stdout and reads the answers line by line.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed answer. io.EOF is returned at
// the end of input with no answer.
func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question, no is the default.
func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.ask(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// portion asks for a new portion. The boolean is false when the user kept
// the current one. "cancel" returns errCancelled.
func (p *prompter) portion(current platelog.Grams) (platelog.Grams, bool, error) {
	answer, err := p.ask(fmt.Sprintf("Portion in grams [%v], or cancel: ", current))
	if err != nil {
		return platelog.Grams{}, false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return current, false, nil
	case "cancel", "c", "q":
		return platelog.Grams{}, false, errCancelled
	}
	g, err := platelog.ParseGrams(answer)
	if err != nil {
		return platelog.Grams{}, false, err
	}
	return g, true, nil
}
