// Command passwd prints a bcrypt hash for a password read from the terminal,
// at the work factor the server is configured with. It is used to seed
// accounts directly in the database.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/config"
	"github.com/dmitrijs2005/taskcamp/internal/server/credentials"
	"golang.org/x/term"
)

func main() {
	cfg := config.LoadConfig()

	store, err := credentials.NewStore(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("%v", err)
	}

	password, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	hash, err := store.Hash(password)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(hash)
}

// readPassword prompts twice without echo on a terminal. Piped input is
// read as a single line.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(prompt, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}

	fmt.Fprint(prompt, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}

	defer common.WipeByteArray(first)
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
