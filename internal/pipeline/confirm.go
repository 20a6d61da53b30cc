package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
)

// ConfirmFunc asks a yes/no question and reports the answer. The
// default applies when the user just presses Enter.
type ConfirmFunc func(prompt string, def bool) bool

// StdinConfirm returns a ConfirmFunc that prompts on w and reads
// answers from r. Unrecognized input re-prompts; end of input takes
// the default.
func StdinConfirm(r io.Reader, w io.Writer) ConfirmFunc {
	reader := bufio.NewReader(r)
	return func(prompt string, def bool) bool {
		suffix := "[Y/n]"
		if !def {
			suffix = "[y/N]"
		}
		for {
			fmt.Fprintf(w, "%s %s: ", prompt, suffix)
			line, err := reader.ReadString('\n')
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
				if err != nil {
					fmt.Fprintln(w)
				}
				return def
			case "y", "yes":
				return true
			case "n", "no":
				return false
			}
			if err != nil {
				return def
			}
		}
	}
}

// AutoConfirm returns a ConfirmFunc for unattended runs. It logs each
// prompt and answers with the default.
func AutoConfirm() ConfirmFunc {
	return func(prompt string, def bool) bool {
		answer := "yes"
		if !def {
			answer = "no"
		}
		log.Printf("%s %s (auto)", prompt, answer)
		return def
	}
}
