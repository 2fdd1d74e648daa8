package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/stemsi/exstem-practice/internal/examsession"
	"github.com/stemsi/exstem-practice/internal/model"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

type autoResult struct {
	out *model.SubmitOutcome
	err error
}

// syncWriter serializes writes from the countdown goroutine and the prompt loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runner drives one exam session from line-based input.
type runner struct {
	sess     *examsession.Session
	canceler examsession.Canceller
	out      io.Writer
	color    bool

	lines   <-chan string
	expired chan autoResult
	current int
}

func newRunner(out io.Writer, in io.Reader, color bool) *runner {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()
	return &runner{
		out:     &syncWriter{w: out},
		color:   color,
		lines:   lines,
		expired: make(chan autoResult, 1),
	}
}

// sessionOptions hooks the runner into a session's countdown.
func (r *runner) sessionOptions() []examsession.Option {
	return []examsession.Option{
		examsession.WithTickHandler(r.onTick),
		examsession.WithAutoSubmitHandler(func(out *model.SubmitOutcome, err error) {
			r.expired <- autoResult{out: out, err: err}
		}),
	}
}

func (r *runner) onTick(remaining int) {
	switch {
	case remaining == 0:
	case remaining%300 == 0, remaining == 60, remaining == 10:
		r.printf("%s\n", r.paint(fmt.Sprintf("[%s left]", formatClock(remaining)), colorYellow))
	}
}

// run blocks until the session is submitted, abandoned or input ends.
func (r *runner) run(ctx context.Context) error {
	if err := r.sess.Start(ctx); err != nil {
		if errors.Is(err, examsession.ErrAlreadySubmitted) {
			r.printf("You have already completed %s. Use -history to see your result.\n", r.sess.ExamCode())
		}
		return err
	}
	defer r.sess.Close()

	questions := r.sess.Questions()
	r.printf("%s\n", r.paint(fmt.Sprintf("%s: %d questions, %s on the clock", r.sess.ExamCode(), len(questions), formatClock(r.sess.SecondsRemaining())), colorBold+colorCyan))
	r.printf("Commands: a-d answer, n next, p previous, g <n> go to, l list, s submit, q quit\n\n")
	r.render()

	for {
		select {
		case res := <-r.expired:
			if res.err != nil && !errors.Is(res.err, examsession.ErrAlreadySubmitted) {
				r.printf("\n%s\n", r.paint("Time is up but the automatic submission failed, your answers are kept. Submit them with s. ("+res.err.Error()+")", colorBold+colorRed))
				continue
			}
			r.printf("\n%s\n", r.paint("Time is up. Your answers were submitted automatically.", colorBold+colorYellow))
			return r.finish(res.out, res.err)
		case <-ctx.Done():
			_ = r.sess.Abandon(context.Background(), r.canceler, "interrupted")
			return ctx.Err()
		case line, ok := <-r.lines:
			if !ok {
				_ = r.sess.Abandon(context.Background(), r.canceler, "input closed")
				return io.ErrUnexpectedEOF
			}
			done, err := r.handle(ctx, line)
			if done {
				return err
			}
		}
	}
}

// handle executes one command. done reports whether the session is over.
func (r *runner) handle(ctx context.Context, line string) (done bool, err error) {
	questions := r.sess.Questions()
	cmd, arg, _ := strings.Cut(strings.ToLower(line), " ")

	switch cmd {
	case "":
		r.render()
	case "a", "b", "c", "d":
		q := questions[r.current]
		idx := int(cmd[0] - 'a')
		if idx >= len(q.Options) {
			r.printf("No option %s.\n", strings.ToUpper(cmd))
			return false, nil
		}
		if err := r.sess.Answer(q.ID, q.Options[idx]); err != nil {
			r.printf("%s\n", r.paint(err.Error(), colorRed))
			return false, nil
		}
		if r.current < len(questions)-1 {
			r.current++
		}
		r.render()
	case "n":
		if r.current < len(questions)-1 {
			r.current++
		}
		r.render()
	case "p":
		if r.current > 0 {
			r.current--
		}
		r.render()
	case "g":
		n, convErr := strconv.Atoi(strings.TrimSpace(arg))
		if convErr != nil || n < 1 || n > len(questions) {
			r.printf("Pick a question between 1 and %d.\n", len(questions))
			return false, nil
		}
		r.current = n - 1
		r.render()
	case "l":
		r.list()
	case "s":
		out, err := r.sess.Submit(ctx)
		if err != nil && !errors.Is(err, examsession.ErrAlreadySubmitted) {
			r.printf("%s\n", r.paint("Submit failed, your answers are kept. Try again with s. ("+err.Error()+")", colorRed))
			return false, nil
		}
		return true, r.finish(out, err)
	case "q":
		if err := r.sess.Abandon(ctx, r.canceler, "quit"); err != nil {
			r.printf("Could not notify the server: %v\n", err)
		}
		r.printf("Exam abandoned. Nothing was submitted.\n")
		return true, nil
	default:
		r.printf("Unknown command %q.\n", line)
	}
	return false, nil
}

// finish prints the graded result. err is nil or ErrAlreadySubmitted.
func (r *runner) finish(out *model.SubmitOutcome, err error) error {
	if errors.Is(err, examsession.ErrAlreadySubmitted) || out == nil {
		r.printf("This exam was already submitted. Use -history to see your result.\n")
		return nil
	}

	answers := r.sess.Answers()
	key := make(map[string]string, len(out.CorrectAnswers))
	for _, k := range out.CorrectAnswers {
		key[k.QuestionID.String()] = k.CorrectAnswer
	}

	r.printf("\n%s\n", r.paint(fmt.Sprintf("Score: %.2f / 10  (%d of %d correct)", out.Score, out.Correct, out.Total), colorBold+colorCyan))
	for i, q := range r.sess.Questions() {
		given := answers[q.ID]
		correct := key[q.ID.String()]
		mark := r.paint("✔", colorGreen)
		if given != correct {
			mark = r.paint("✘", colorRed)
		}
		if given == "" {
			given = "(no answer)"
		}
		r.printf("%s %2d. %s\n      yours: %s  correct: %s\n", mark, i+1, q.QuestionText, given, correct)
	}
	if !out.Recorded {
		r.printf("Quick practice: this attempt was not recorded.\n")
	}
	return nil
}

func (r *runner) render() {
	questions := r.sess.Questions()
	q := questions[r.current]
	chosen := r.sess.Answers()[q.ID]

	r.printf("%s %s\n", r.paint(fmt.Sprintf("Q%d/%d", r.current+1, len(questions)), colorBold), q.QuestionText)
	for i, opt := range q.Options {
		prefix := "  "
		if opt == chosen {
			prefix = r.paint("> ", colorYellow)
		}
		r.printf("%s%c) %s\n", prefix, 'A'+i, opt)
	}
	r.printf("[%s left] > ", formatClock(r.sess.SecondsRemaining()))
}

func (r *runner) list() {
	answers := r.sess.Answers()
	for i, q := range r.sess.Questions() {
		status := r.paint("unanswered", colorYellow)
		if a, ok := answers[q.ID]; ok {
			status = a
		}
		r.printf("%2d. %s  [%s]\n", i+1, q.QuestionText, status)
	}
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *runner) paint(s, color string) string {
	if !r.color {
		return s
	}
	return color + s + colorReset
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
