// Package ui holds the interactive pieces of the CLI. The Selector is
// the one true suspension point of a connection run: when resolution
// leaves more than one candidate, it lists them and blocks for a single
// operator choice.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/keeper-security/ksm-connect/pkg/types"
)

var (
	// ErrInvalidSelection means the operator's input matched none of
	// the presented candidates. There is no re-prompt; the caller
	// fails the host and moves on.
	ErrInvalidSelection = errors.New("selection does not match a listed candidate")

	// ErrSelectionTimeout means the operator did not answer in time.
	ErrSelectionTimeout = errors.New("selection timed out")
)

// Options configures a Selector.
type Options struct {
	In      io.Reader     // defaults to os.Stdin
	Out     io.Writer     // defaults to os.Stdout
	Timeout time.Duration // zero waits indefinitely
}

// Selector presents resolution candidates and reads one choice.
type Selector struct {
	in      io.Reader
	out     io.Writer
	timeout time.Duration
}

// NewSelector creates a selector with the given options.
func NewSelector(opts Options) *Selector {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Selector{in: opts.In, out: opts.Out, timeout: opts.Timeout}
}

// Pick lists the candidates in order and performs a single blocking
// read of operator input. The choice may be a list position or a full
// record UID. Anything else fails with ErrInvalidSelection.
func (s *Selector) Pick(ctx context.Context, candidates []types.SecretSummary) (string, error) {
	if len(candidates) == 0 {
		return "", errors.New("no candidates to present")
	}

	fmt.Fprintln(s.out, "Multiple credentials match:")
	for i, c := range candidates {
		fmt.Fprintf(s.out, "  [%d] %s  %s", i+1, c.UID, c.Title)
		if c.Username != "" {
			fmt.Fprintf(s.out, " (%s)", c.Username)
		}
		fmt.Fprintln(s.out)
	}

	prompt := fmt.Sprintf("Select 1-%d or UID", len(candidates))
	if s.timeout > 0 {
		prompt += fmt.Sprintf(" (%v)", s.timeout)
	}
	fmt.Fprintf(s.out, "%s: ", prompt)

	var promptCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		promptCtx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		promptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	responseChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(s.in)
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			errorChan <- fmt.Errorf("failed to read selection: %w", err)
			return
		}
		responseChan <- response
	}()

	select {
	case <-promptCtx.Done():
		fmt.Fprintln(s.out)
		if errors.Is(promptCtx.Err(), context.DeadlineExceeded) {
			return "", ErrSelectionTimeout
		}
		return "", promptCtx.Err()

	case err := <-errorChan:
		return "", err

	case response := <-responseChan:
		return parseSelection(response, candidates)
	}
}

// parseSelection matches operator input against the presented
// candidates, by list position first, then by UID.
func parseSelection(response string, candidates []types.SecretSummary) (string, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", ErrInvalidSelection
	}

	if n, err := strconv.Atoi(response); err == nil && n >= 1 && n <= len(candidates) {
		return candidates[n-1].UID, nil
	}

	for _, c := range candidates {
		if c.UID == response {
			return c.UID, nil
		}
	}

	return "", fmt.Errorf("selection %.32q: %w", response, ErrInvalidSelection)
}
