package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptLine prints prompt to w and reads one line from r.
func promptLine(r *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// fill prompts for every empty value, in order.
func fill(r io.Reader, w io.Writer, fields ...field) error {
	in := bufio.NewReader(r)
	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		var (
			v   string
			err error
		)
		if f.secret {
			v, err = promptPassword(w)
		} else {
			v, err = promptLine(in, w, f.label)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", strings.ToLower(f.label), err)
		}
		*f.value = v
	}
	return nil
}

type field struct {
	label  string
	value  *string
	secret bool
}
