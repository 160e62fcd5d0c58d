package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"lamp_control/internal/logger"
	"lamp_control/internal/models"
	"lamp_control/internal/panel"

	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("panel", pflag.ExitOnError)
	panel.Flags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: panel [flags]        control the lamp")
		fmt.Fprintln(os.Stderr, "       panel [flags] logs   open the admin log viewer")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := panel.LoadConfig(fs, "configs", ".")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.Get(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if fs.Arg(0) == "logs" {
		runLogs(ctx, cfg, log)
		return
	}
	runControl(ctx, cfg, log)
}

func runControl(ctx context.Context, cfg panel.Config, log *logger.Logger) {
	v := panel.NewControlView(cfg, log.Named("control"))
	v.OnChange(func(st models.DeviceState) {
		fmt.Println(panel.FormatState(st))
	})
	v.Open(ctx)
	defer v.Close()

	fmt.Printf("controlling %s via %s (%d axes, %s), type help\n", cfg.DeviceID, cfg.ControlURL, cfg.Axes, cfg.PositionMode)
	lines := readLines(ctx, os.Stdin)
	for {
		line, ok := nextLine(ctx, lines)
		if !ok {
			return
		}
		out, err := panel.Exec(v, line)
		if errors.Is(err, panel.ErrQuit) {
			return
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}

func runLogs(ctx context.Context, cfg panel.Config, log *logger.Logger) {
	a := panel.NewAdminView(cfg.LogURL, panel.NewGate(cfg.Gate), log.Named("admin"))
	defer a.Close()

	// hook first: lines can arrive as soon as Login returns
	a.OnLog(func(line string) { fmt.Println(line) })

	lines := readLines(ctx, os.Stdin)
	fmt.Print("secret: ")
	for a.State() == panel.LoggedOut {
		word, ok := nextLine(ctx, lines)
		if !ok {
			return
		}
		if err := a.Login(ctx, word); err != nil {
			if errors.Is(err, panel.ErrAccessDenied) {
				fmt.Println("access denied")
			} else {
				fmt.Println(err)
			}
			fmt.Print("secret: ")
		}
	}

	select {
	case <-ctx.Done():
	case <-a.Socket().Done():
		fmt.Println("log stream closed")
	}
}

// readLines feeds lines from r until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// nextLine waits for the next input line. It reports false on EOF or once ctx ends,
// even while the reader is still blocked on the terminal.
func nextLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}
