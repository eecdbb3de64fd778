// Command formpage runs the page service: a stand-in form whose calls are intercepted and
// held until the test driver settles them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/laji-form/mock-contract-tests/formpage"
	"github.com/laji-form/mock-contract-tests/framework"
)

func main() {
	var (
		configPath string
		port       int
		fallback   string
		lenient    bool
		debug      bool
	)
	fs := flag.NewFlagSet("formpage", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "path of a TOML config file")
	fs.IntVar(&port, "port", 0, "port to listen on (overrides the config file)")
	fs.StringVar(&fallback, "fallback-url", "", "upstream for unmatched calls (overrides the config file)")
	fs.BoolVar(&lenient, "lenient", false, "let unmatched calls fall through instead of failing them")
	fs.BoolVar(&debug, "debug", false, "log every routing decision")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid parameters: %s\n", err)
		os.Exit(1)
	}

	config, err := formpage.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if port != 0 {
		config.Port = port
	}
	if fallback != "" {
		config.FallbackURL = fallback
	}
	if lenient {
		config.Strict = false
	}
	debug = debug || config.Debug

	out := log.New(os.Stdout, "[formpage] ", log.LstdFlags)
	sessionLogger := framework.NullLogger()
	if debug {
		sessionLogger = out
	}

	service := formpage.NewService(config, sessionLogger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           service,
		ReadHeaderTimeout: time.Second * 10,
	}

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		select {
		case <-signals:
			out.Printf("Interrupted")
		case <-service.Stopped():
		}
		service.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	out.Printf("Listening on port %d (strict: %t, rendezvous: %t)", config.Port, config.Strict, config.Rendezvous)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		out.Printf("Server failed: %s", err)
		os.Exit(1)
	}
	out.Printf("Stopped")
}
