package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/model"
)

const quickCode = "quick-practice"

type practiceFixture struct {
	svc       *PracticeService
	questions *memQuestions
	results   *memResults
	cache     *memCache
	events    *memEvents
	feed      *memFeed
}

func newPracticeFixture(qs ...model.PracticeQuestion) *practiceFixture {
	f := &practiceFixture{
		questions: &memQuestions{questions: qs},
		results:   &memResults{},
		cache:     newMemCache(),
		events:    &memEvents{},
		feed:      &memFeed{},
	}
	f.svc = NewPracticeService(f.questions, f.results, f.cache, f.events, f.feed, quickCode, zerolog.Nop())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func answerAll(qs []model.PracticeQuestion, pick func(model.PracticeQuestion) string) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(qs))
	for i, q := range qs {
		out[i] = model.SubmittedAnswer{QuestionID: q.ID, Answer: pick(q)}
	}
	return out
}

func TestAccessStripsAnswers(t *testing.T) {
	qs := []model.PracticeQuestion{
		question("GEO", "Capital of France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid"),
		question("GEO", "Capital of Italy?", "Rome", 12, "Paris", "Rome", "Berlin", "Madrid"),
		question("MATH", "2+2?", "4", 3, "1", "2", "3", "4"),
	}
	f := newPracticeFixture(qs...)

	paper, err := f.svc.Access(context.Background(), 1, " GEO ")
	if err != nil {
		t.Fatalf("Access() error = %v", err)
	}
	if paper.Status != model.AccessStatusReady {
		t.Errorf("Status = %s, want READY", paper.Status)
	}
	if paper.ExamCode != "GEO" {
		t.Errorf("ExamCode = %q, want trimmed GEO", paper.ExamCode)
	}
	if paper.Total != 2 || len(paper.Questions) != 2 {
		t.Fatalf("Total = %d, len = %d, want 2", paper.Total, len(paper.Questions))
	}
	if paper.DurationMinutes != 12 {
		t.Errorf("DurationMinutes = %d, want max 12", paper.DurationMinutes)
	}
	if paper.Questions[0].ID != qs[0].ID || len(paper.Questions[0].Options) != 4 {
		t.Errorf("first question = %+v", paper.Questions[0])
	}

	// Mutating the served options must not leak into the cached set.
	paper.Questions[0].Options[0] = "tampered"
	cached, _, _ := f.cache.Get(context.Background(), "GEO")
	if cached[0].Options[0] != "Paris" {
		t.Errorf("cache was mutated through served paper")
	}
}

func TestAccessGateHidesContent(t *testing.T) {
	qs := []model.PracticeQuestion{question("GEO", "Capital of France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid")}
	f := newPracticeFixture(qs...)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, 7, model.SubmitRequest{ExamCode: "GEO", Answers: answerAll(qs, func(q model.PracticeQuestion) string { return q.CorrectAnswer })}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	paper, err := f.svc.Access(ctx, 7, "GEO")
	if err != nil {
		t.Fatalf("Access() error = %v", err)
	}
	if paper.Status != model.AccessStatusAlreadySubmitted {
		t.Errorf("Status = %s, want ALREADY_SUBMITTED", paper.Status)
	}
	if len(paper.Questions) != 0 || paper.Total != 0 || paper.DurationMinutes != 0 {
		t.Errorf("gate hit leaked content: %+v", paper)
	}

	// A different user is unaffected.
	other, err := f.svc.Access(ctx, 8, "GEO")
	if err != nil || other.Status != model.AccessStatusReady {
		t.Errorf("other user: paper = %+v err = %v", other, err)
	}
}

func TestAccessErrors(t *testing.T) {
	f := newPracticeFixture()
	if _, err := f.svc.Access(context.Background(), 1, "  "); !errors.Is(err, ErrInvalidExamCode) {
		t.Errorf("blank code: err = %v, want ErrInvalidExamCode", err)
	}
	if _, err := f.svc.Access(context.Background(), 1, "NOPE"); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("unknown code: err = %v, want ErrExamNotFound", err)
	}
}

func TestSubmitScoresAndRecords(t *testing.T) {
	qs := []model.PracticeQuestion{
		question("GEO", "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid"),
		question("GEO", "Italy?", "Rome", 5, "Paris", "Rome", "Berlin", "Madrid"),
		question("GEO", "Germany?", "Berlin", 5, "Paris", "Rome", "Berlin", "Madrid"),
		question("GEO", "Spain?", "Madrid", 5, "Paris", "Rome", "Berlin", "Madrid"),
	}
	f := newPracticeFixture(qs...)

	req := model.SubmitRequest{
		ExamCode: "GEO",
		Auto:     true,
		Answers: []model.SubmittedAnswer{
			{QuestionID: qs[0].ID, Answer: "Paris"},
			{QuestionID: qs[1].ID, Answer: "Rome"},
			{QuestionID: qs[2].ID, Answer: "Paris"},
			{QuestionID: qs[3].ID, Answer: ""},
		},
	}
	out, err := f.svc.Submit(context.Background(), 3, req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out.Correct != 2 || out.Total != 4 || out.Score != 5 {
		t.Errorf("outcome = %d/%d %.2f, want 2/4 5.00", out.Correct, out.Total, out.Score)
	}
	if !out.Recorded || !out.AutoSubmitted {
		t.Errorf("Recorded = %v AutoSubmitted = %v, want both true", out.Recorded, out.AutoSubmitted)
	}
	if len(out.CorrectAnswers) != 4 || out.CorrectAnswers[3].CorrectAnswer != "Madrid" {
		t.Errorf("CorrectAnswers = %+v", out.CorrectAnswers)
	}

	if f.results.count() != 1 {
		t.Fatalf("results = %d, want 1", f.results.count())
	}
	stored := f.results.results[0]
	if stored.UserID != 3 || stored.Score != 5 || !stored.AutoSubmitted {
		t.Errorf("stored = %+v", stored)
	}
	if len(f.feed.published) != 1 {
		t.Errorf("published = %d, want 1", len(f.feed.published))
	}
	if kinds := f.events.kinds(); len(kinds) != 1 || kinds[0] != model.SubmissionEventScored {
		t.Errorf("events = %v, want [scored]", kinds)
	}
}

func TestSubmitTotalIgnoresMissingAnswers(t *testing.T) {
	qs := []model.PracticeQuestion{
		question("MATH", "1+1?", "2", 5, "1", "2", "3", "4"),
		question("MATH", "2+2?", "4", 5, "1", "2", "3", "4"),
		question("MATH", "1+2?", "3", 5, "1", "2", "3", "4"),
	}
	f := newPracticeFixture(qs...)

	out, err := f.svc.Submit(context.Background(), 1, model.SubmitRequest{
		ExamCode: "MATH",
		Answers:  []model.SubmittedAnswer{{QuestionID: qs[0].ID, Answer: "2"}},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out.Total != 3 || out.Correct != 1 || out.Score != 3.33 {
		t.Errorf("outcome = %d/%d %.2f, want 1/3 3.33", out.Correct, out.Total, out.Score)
	}
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	qs := []model.PracticeQuestion{question("GEO", "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid")}
	f := newPracticeFixture(qs...)
	ctx := context.Background()
	req := model.SubmitRequest{ExamCode: "GEO", Answers: []model.SubmittedAnswer{}}

	if _, err := f.svc.Submit(ctx, 1, req); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if _, err := f.svc.Submit(ctx, 1, req); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second Submit() err = %v, want ErrAlreadySubmitted", err)
	}
	if f.results.count() != 1 {
		t.Errorf("results = %d, want 1", f.results.count())
	}
	kinds := f.events.kinds()
	if len(kinds) != 2 || kinds[1] != model.SubmissionEventDuplicate {
		t.Errorf("events = %v, want [scored duplicate]", kinds)
	}
}

func TestConcurrentSubmitsRecordOneResult(t *testing.T) {
	qs := []model.PracticeQuestion{question("GEO", "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid")}
	f := newPracticeFixture(qs...)
	// Every pre-check misses, so only the store's uniqueness guards the race.
	f.results.skipExists = true

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(auto bool) {
			defer wg.Done()
			<-start
			_, err := f.svc.Submit(context.Background(), 42, model.SubmitRequest{
				ExamCode: "GEO",
				Auto:     auto,
				Answers:  answerAll(qs, func(q model.PracticeQuestion) string { return q.CorrectAnswer }),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadySubmitted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i%2 == 0)
	}
	close(start)
	wg.Wait()

	if succeeded != 1 || rejected != n-1 {
		t.Errorf("succeeded = %d rejected = %d, want 1 and %d", succeeded, rejected, n-1)
	}
	if f.results.count() != 1 {
		t.Errorf("results = %d, want 1", f.results.count())
	}
}

func TestQuickPracticeIsNeverRecorded(t *testing.T) {
	qs := []model.PracticeQuestion{question(quickCode, "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid")}
	f := newPracticeFixture(qs...)
	ctx := context.Background()
	req := model.SubmitRequest{ExamCode: quickCode, Answers: answerAll(qs, func(model.PracticeQuestion) string { return "Paris" })}

	for i := 0; i < 2; i++ {
		out, err := f.svc.Submit(ctx, 1, req)
		if err != nil {
			t.Fatalf("Submit #%d error = %v", i+1, err)
		}
		if out.Recorded || out.Score != 10 {
			t.Errorf("Submit #%d = %+v, want unrecorded 10", i+1, out)
		}
	}
	if f.results.count() != 0 {
		t.Errorf("results = %d, want 0", f.results.count())
	}
	if len(f.feed.published) != 0 {
		t.Errorf("quick practice results must not be published")
	}

	paper, err := f.svc.Access(ctx, 1, quickCode)
	if err != nil || paper.Status != model.AccessStatusReady {
		t.Errorf("Access() = %+v, %v", paper, err)
	}
}

func TestLoadQuestionsUsesCache(t *testing.T) {
	qs := []model.PracticeQuestion{question("GEO", "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid")}
	f := newPracticeFixture(qs...)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Access(ctx, i+1, "GEO"); err != nil {
			t.Fatal(err)
		}
	}
	if f.questions.listCalls != 1 {
		t.Errorf("store hits = %d, want 1", f.questions.listCalls)
	}
}

// editDuringLoad lets an admin edit land between the database read and the cache fill.
type editDuringLoad struct {
	*memQuestions
	edit func()
}

func (e *editDuringLoad) ListByExamCode(ctx context.Context, examCode string) ([]model.PracticeQuestion, error) {
	qs, err := e.memQuestions.ListByExamCode(ctx, examCode)
	if e.edit != nil {
		e.edit()
		e.edit = nil
	}
	return qs, err
}

func TestStaleLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newPracticeFixture(question("GEO", "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid"))
	admin := NewQuestionService(f.questions, f.cache, zerolog.Nop())

	reader := &editDuringLoad{memQuestions: f.questions}
	reader.edit = func() {
		q := question("GEO", "Italy?", "Rome", 5, "Paris", "Rome", "Berlin", "Madrid")
		if err := admin.Create(ctx, &q); err != nil {
			t.Errorf("Create() error = %v", err)
		}
	}
	svc := NewPracticeService(reader, f.results, f.cache, nil, nil, quickCode, zerolog.Nop())

	paper, err := svc.Access(ctx, 1, "GEO")
	if err != nil {
		t.Fatal(err)
	}
	if paper.Total != 1 {
		t.Errorf("Total = %d, want the set read before the edit", paper.Total)
	}
	if _, found, _ := f.cache.Get(ctx, "GEO"); found {
		t.Fatal("set loaded before the edit was cached")
	}

	// The next load sees the edit and may fill the cache.
	paper, err = svc.Access(ctx, 2, "GEO")
	if err != nil {
		t.Fatal(err)
	}
	cached, found, _ := f.cache.Get(ctx, "GEO")
	if paper.Total != 2 || !found || len(cached) != 2 {
		t.Errorf("Total = %d, cached = %d (found %v), want 2", paper.Total, len(cached), found)
	}
}

func TestCancelLeavesGateOpen(t *testing.T) {
	qs := []model.PracticeQuestion{question("GEO", "France?", "Paris", 5, "Paris", "Rome", "Berlin", "Madrid")}
	f := newPracticeFixture(qs...)
	ctx := context.Background()

	if err := f.svc.Cancel(ctx, 1, model.CancelRequest{ExamCode: "GEO", Reason: "navigated away"}); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if f.results.count() != 0 {
		t.Errorf("cancel wrote a result")
	}
	paper, err := f.svc.Access(ctx, 1, "GEO")
	if err != nil || paper.Status != model.AccessStatusReady {
		t.Errorf("Access after cancel = %+v, %v", paper, err)
	}
	if kinds := f.events.kinds(); len(kinds) != 1 || kinds[0] != model.SubmissionEventCancelled {
		t.Errorf("events = %v, want [cancelled]", kinds)
	}

	if err := f.svc.Cancel(ctx, 1, model.CancelRequest{}); !errors.Is(err, ErrInvalidExamCode) {
		t.Errorf("blank cancel err = %v", err)
	}
}
