package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pifleet/wifibridge/internal/client"
	"github.com/pifleet/wifibridge/internal/domain"
)

const (
	defaultHost     = "10.10.0.1"
	defaultPort     = 12345
	defaultAttempts = 3
	defaultDelay    = 5 * time.Second
)

func main() {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("WIFIBRIDGE_DEBUG") == "true" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	host := defaultHost
	if v := os.Getenv("WIFIBRIDGE_AGENT_HOST"); v != "" {
		host = v
	}
	port := defaultPort
	if v := os.Getenv("WIFIBRIDGE_AGENT_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			fmt.Fprintf(os.Stderr, "invalid WIFIBRIDGE_AGENT_PORT %q\n", v)
			os.Exit(int(client.StatusGeneralFailure))
		}
		port = p
	}

	driver := client.New(logger)

	args := os.Args[1:]
	switch len(args) {
	case 2, 3:
		req := domain.ProvisionRequest{SSID: args[0], Password: args[1]}
		if len(args) == 3 {
			req.ProfileName = strings.TrimSpace(args[2])
		}
		status := driver.Send(context.Background(), host, port, req, defaultAttempts, defaultDelay)
		os.Exit(int(status))

	case 0:
		runInteractive(driver, host, port)

	default:
		usage()
		os.Exit(int(client.StatusGeneralFailure))
	}
}

// runInteractive prompts for credentials in a loop until interrupted.
func runInteractive(driver *client.Driver, host string, port int) {
	fmt.Println("Interactive mode: ^C to exit")
	in := bufio.NewScanner(os.Stdin)

	for {
		ssid, ok := prompt(in, "Enter SSID: ")
		if !ok {
			return
		}
		password, ok := prompt(in, "Enter Password: ")
		if !ok {
			return
		}
		profile, ok := prompt(in, "Enter Profile Name (or leave blank for default): ")
		if !ok {
			return
		}

		req := domain.ProvisionRequest{
			SSID:        ssid,
			Password:    password,
			ProfileName: strings.TrimSpace(profile),
		}
		status := driver.Send(context.Background(), host, port, req, defaultAttempts, defaultDelay)
		fmt.Printf("Operation resulted in exit status: %d\n", int(status))
		fmt.Println(strings.Repeat("-", 20))
	}
}

func prompt(in *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !in.Scan() {
		return "", false
	}
	return in.Text(), true
}

func usage() {
	prog := os.Args[0]
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  Interactive mode:               %s\n", prog)
	fmt.Fprintf(os.Stderr, "  Command-line (default profile): %s <SSID> <Password>\n", prog)
	fmt.Fprintf(os.Stderr, "  Command-line (custom profile):  %s <SSID> <Password> <ProfileName>\n", prog)
	fmt.Fprintf(os.Stderr, "Fields containing spaces must be quoted; fields must not contain commas.\n")
}
