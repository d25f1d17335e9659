// Command labctl reads and edits the lab catalog from a terminal, through the
// same cached data provider used by the console.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/labtrack/go-liblab/apierror"
	"github.com/labtrack/go-liblab/catalog/client"
	"github.com/labtrack/go-liblab/catalog/model"
	"github.com/labtrack/go-liblab/provider"
	"github.com/labtrack/go-liblab/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "v0.1.0"

const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if a.jsonOut {
			fmt.Fprintln(stderr, string(apierror.EncodeError(err)))
		} else {
			fmt.Fprintln(stderr, "Error:", apierror.Message(err))
		}
		return exitCode(err)
	}
	return exitSuccess
}

// userError marks an error caused by the command line or the input files, as
// opposed to a failure of the system or the server.
type userError struct {
	err error
}

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func userErr(err error) error {
	if err == nil {
		return nil
	}
	return &userError{err: err}
}

func userErrorf(format string, args ...any) error {
	return &userError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var uerr *userError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &uerr),
		errors.Is(err, model.ErrUnknownEntity),
		errors.Is(err, client.ErrInvalidPayload),
		errors.Is(err, provider.ErrMissingID),
		errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrInvalidToken):
		return exitUserError
	}
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) && apiErr.Status() >= http.StatusBadRequest && apiErr.Status() < http.StatusInternalServerError {
		return exitUserError
	}
	return exitSysError
}
