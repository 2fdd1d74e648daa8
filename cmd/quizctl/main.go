// Command quizctl takes a timed practice exam from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/exstem-practice/internal/client"
	"github.com/stemsi/exstem-practice/internal/examsession"
	"github.com/stemsi/exstem-practice/internal/logger"
	"golang.org/x/term"
)

func main() {
	server := flag.String("server", envOr("QUIZ_SERVER", "http://localhost:8080"), "API base URL")
	email := flag.String("email", os.Getenv("QUIZ_EMAIL"), "account email")
	exam := flag.String("exam", "", "exam code to take")
	history := flag.Bool("history", false, "list your past results instead of taking an exam")
	noColor := flag.Bool("no-color", false, "disable ANSI colors")
	submitTimeout := flag.Duration("submit-timeout", 30*time.Second, "how long the automatic submission may take when time runs out")
	flag.Parse()

	log := logger.New(os.Stderr, envOr("LOG_LEVEL", "warn"), "pretty")

	// QUIZ_TOKEN reuses an existing session instead of prompting for a password.
	token := os.Getenv("QUIZ_TOKEN")
	if (*email == "" && token == "") || (*exam == "" && !*history) {
		fmt.Fprintln(os.Stderr, "Usage: quizctl -email you@example.com (-exam CODE | -history)")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewReader(os.Stdin)
	c, name, err := signIn(ctx, *server, *email, token, stdin)
	if err != nil {
		log.Fatal().Err(err).Str("server", *server).Msg("Sign in failed")
	}
	if token == "" {
		defer func() {
			logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Logout(logoutCtx); err != nil {
				log.Warn().Err(err).Msg("Logout failed")
			}
		}()
	}
	fmt.Printf("Signed in as %s.\n\n", name)

	if *history {
		if err := printHistory(ctx, c, *exam); err != nil {
			log.Error().Err(err).Msg("Failed to load results")
		}
		return
	}

	color := !*noColor && term.IsTerminal(int(os.Stdout.Fd()))
	r := newRunner(os.Stdout, stdin, color)
	opts := append(r.sessionOptions(), examsession.WithSubmitTimeout(*submitTimeout))
	r.sess = examsession.New(*exam, c, c, opts...)
	r.canceler = c

	if err := r.run(ctx); err != nil && !errors.Is(err, examsession.ErrAlreadySubmitted) {
		log.Error().Err(err).Str("exam_code", *exam).Msg("Exam ended with an error")
	}
}

// signIn returns a client holding a bearer token. A preset token is checked
// against the server; otherwise the password is read and exchanged for one.
func signIn(ctx context.Context, server, email, token string, stdin *bufio.Reader) (*client.Client, string, error) {
	if token != "" {
		c := client.New(server, client.WithToken(token))
		me, err := c.Me(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("check token: %w", err)
		}
		return c, me.Name, nil
	}

	password, err := readPassword(stdin)
	if err != nil {
		return nil, "", fmt.Errorf("read password: %w", err)
	}
	c := client.New(server)
	login, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	return c, login.User.Name, nil
}

func readPassword(stdin *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		return string(b), err
	}
	line, err := stdin.ReadString('\n')
	fmt.Println()
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printHistory(ctx context.Context, c *client.Client, examCode string) error {
	results, page, err := c.Results(ctx, client.ResultsQuery{ExamCode: examCode, PerPage: 50})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results yet.")
		return nil
	}
	for _, res := range results {
		auto := ""
		if res.AutoSubmitted {
			auto = " (time ran out)"
		}
		fmt.Printf("%-20s %5.2f  %d/%d  %s%s\n", res.ExamCode, res.Score, res.Correct, res.Total, res.SubmittedAt.Local().Format("2006-01-02 15:04"), auto)
	}
	if page != nil && page.TotalPages > 1 {
		fmt.Printf("Showing %d of %d results.\n", len(results), page.TotalItems)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
