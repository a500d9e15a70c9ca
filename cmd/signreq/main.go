// Command signreq sends one signed HTTP request and prints the response.
//
//	signreq -client billing -key secret -X POST -d '{"id":7}' https://api.example.com/orders
//
// The client id and key may also come from SIGNATURE_CLIENT_ID and
// SIGNATURE_KEY, or a .env file. -config loads client options from YAML.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"requests-signature/internal/client"
	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }

func (h *headerFlags) Set(value string) error {
	*h = append(*h, value)
	return nil
}

// clockReporter prints clock corrections made by the signing transport.
type clockReporter struct {
	w io.Writer
}

func (c clockReporter) ObserveClockCorrection(offset time.Duration) {
	fmt.Fprintf(c.w, "signreq: clock corrected by %s\n", offset)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "signreq:", err)
		os.Exit(1)
	}
}

func run(args []string, out, errOut io.Writer) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("signreq", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML file with client options")
	clientID := fs.String("client", os.Getenv("SIGNATURE_CLIENT_ID"), "client id")
	key := fs.String("key", os.Getenv("SIGNATURE_KEY"), "shared secret")
	method := fs.String("X", http.MethodGet, "request method")
	data := fs.String("d", "", "request body")
	components := fs.String("components", "", "comma separated signature components")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	verbose := fs.Bool("v", false, "log signing details")
	var headers headerFlags
	fs.Var(&headers, "H", "request header (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("exactly one URL is required")
	}

	options, err := loadOptions(*configPath)
	if err != nil {
		return err
	}
	if *clientID != "" {
		options.ClientID = *clientID
	}
	if *key != "" {
		options.Key = *key
	}
	if *components != "" {
		parsed, err := signature.ParseComponents(strings.Split(*components, ","))
		if err != nil {
			return err
		}
		options.Components = parsed
	}

	logger := logging.NewNopLogger()
	if *verbose {
		logger, err = logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: os.Stderr})
		if err != nil {
			return err
		}
	}

	httpClient, err := client.NewClient(options,
		client.WithLogger(logger),
		client.WithClockObserver(clockReporter{w: errOut}),
	)
	if err != nil {
		return err
	}
	httpClient.Timeout = *timeout

	var body io.Reader
	if *data != "" {
		body = strings.NewReader(*data)
	}

	req, err := http.NewRequestWithContext(context.Background(), strings.ToUpper(*method), fs.Arg(0), body)
	if err != nil {
		return err
	}
	for _, header := range headers {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			return fmt.Errorf("invalid header %q", header)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Fprintln(out, resp.Status)
	_, err = io.Copy(out, resp.Body)
	return err
}

func loadOptions(path string) (client.Options, error) {
	var options client.Options
	if path == "" {
		return options, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return options, fmt.Errorf("failed to read client options: %w", err)
	}
	if err := yaml.Unmarshal(data, &options); err != nil {
		return options, fmt.Errorf("failed to parse client options: %w", err)
	}
	return options, nil
}
