package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	inputFile = os.Stdin
)

func guidedInitialization(config *Config) error {
	scanner := bufio.NewScanner(inputFile)

	prompts := []struct {
		prompt string
		target *string
	}{
		{"Enter WebDAV server URL", &config.WebDavURL},
		{"Enter WebDAV username", &config.Username},
		{"Enter WebDAV password", &config.Password},
		{"Enter remote root path", &config.RemoteRoot},
		{"Enter local vault directory", &config.LocalDir},
	}
	for _, p := range prompts {
		input, err := ask(scanner, fmt.Sprintf("%s [default: %s]", p.prompt, *p.target))
		if err != nil {
			return err
		}
		if input != "" {
			*p.target = input
		}
	}

	input, err := ask(scanner, fmt.Sprintf("Enter sync interval (e.g. 30s, 1m) [default: %s]", config.SyncInterval))
	if err != nil {
		return err
	}
	if input != "" {
		duration, err := time.ParseDuration(input)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		if duration <= 0 {
			return fmt.Errorf("sync interval must be positive, got '%s'", input)
		}
		config.SyncInterval = duration
	}

	input, err = ask(scanner, fmt.Sprintf("Enter number of transfer workers [default: %d]", config.TransferWorkers))
	if err != nil {
		return err
	}
	if input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid worker count '%s'", input)
		}
		config.TransferWorkers = n
	}

	return nil
}

func ask(scanner *bufio.Scanner, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("could not read user input: %w", err)
		}
		return "", nil // EOF or closed input
	}
	return strings.TrimSpace(scanner.Text()), nil
}
