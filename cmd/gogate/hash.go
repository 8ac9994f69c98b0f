package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/password"
	"golang.org/x/term"
)

var readPassword = term.ReadPassword

// runHash prints a hash for a password read from the terminal without
// echo, or from the first line of stdin when piped.
func runHash(args []string) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := goGate.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}

	secret, err := readSecret(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}
	out, err := hashSecret(cfg.Password.Argon2, secret)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func readSecret(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		b, err := readPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func hashSecret(params password.Argon2Params, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("empty password")
	}
	v, err := password.NewVerifier(params)
	if err != nil {
		return "", err
	}
	return v.Hash(secret)
}
