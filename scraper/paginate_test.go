package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-movies/models"
)

func TestPaginatorRoundCap(t *testing.T) {
	tests := []struct {
		name           string
		reveals        int
		maxRounds      int
		wantCalls      int
		wantRounds     int
		wantExhaustion string
	}{
		{name: "reveal always present", reveals: -1, maxRounds: 3, wantCalls: 3, wantRounds: 3, wantExhaustion: ExhaustedRoundCap},
		{name: "runs out early", reveals: 1, maxRounds: 3, wantCalls: 2, wantRounds: 1, wantExhaustion: ExhaustedNoMore},
		{name: "nothing to reveal", reveals: 0, maxRounds: 3, wantCalls: 1, wantRounds: 0, wantExhaustion: ExhaustedNoMore},
		{name: "revealing disabled", reveals: -1, maxRounds: 0, wantCalls: 0, wantRounds: 0, wantExhaustion: ExhaustedRoundCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{
				t:       t,
				pages:   map[models.Category]string{"Comedy": listingPage("", comedyEntries...)},
				reveals: tt.reveals,
			}
			p := NewPaginator(session, tt.maxRounds)

			result, err := p.Run(context.Background(), "Comedy")
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if session.revealCalls != tt.wantCalls {
				t.Fatalf("reveal calls = %d, want %d", session.revealCalls, tt.wantCalls)
			}
			if result.Rounds != tt.wantRounds {
				t.Fatalf("rounds = %d, want %d", result.Rounds, tt.wantRounds)
			}
			if result.Exhaustion != tt.wantExhaustion {
				t.Fatalf("exhaustion = %q, want %q", result.Exhaustion, tt.wantExhaustion)
			}
			if len(result.Entries) != len(comedyEntries) {
				t.Fatalf("entries = %d, want %d", len(result.Entries), len(comedyEntries))
			}
			if p.State() != StateExhausted {
				t.Fatalf("state = %s, want %s", p.State(), StateExhausted)
			}
		})
	}
}

func TestPaginatorExpandNotFound(t *testing.T) {
	notFound := ErrElementNotFound{Step: "select category", Selector: "//button"}
	session := &fakeSession{
		t:         t,
		expandErr: map[models.Category]error{"Horror": notFound},
		reveals:   -1,
	}
	p := NewPaginator(session, 3)

	result, err := p.Run(context.Background(), "Horror")
	var target ErrElementNotFound
	if !errors.As(err, &target) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if IsFatal(err) {
		t.Fatal("element not found must not be fatal")
	}
	if len(result.Entries) != 0 || session.revealCalls != 0 {
		t.Fatalf("expected no entries and no reveals, got %d entries, %d reveals", len(result.Entries), session.revealCalls)
	}
	if result.Exhaustion != ExhaustedExpandFailed || p.State() != StateExhausted {
		t.Fatalf("exhaustion = %q state = %s", result.Exhaustion, p.State())
	}
}

func TestPaginatorSettleFailure(t *testing.T) {
	session := &fakeSession{t: t, settleErr: ErrElementNotFound{Step: "settle results"}, reveals: -1}

	result, err := NewPaginator(session, 3).Run(context.Background(), "Drama")
	if err == nil {
		t.Fatal("expected settle error")
	}
	if result.Exhaustion != ExhaustedSettleFailed {
		t.Fatalf("exhaustion = %q", result.Exhaustion)
	}
}

func TestPaginatorSessionFailureIsFatal(t *testing.T) {
	session := &fakeSession{t: t, revealErr: ErrSession{Err: errors.New("browser crashed")}}

	_, err := NewPaginator(session, 3).Run(context.Background(), "Action")
	if !IsFatal(err) {
		t.Fatalf("expected fatal session error, got %v", err)
	}
}

func TestPaginatorRevealFailureKeepsEntries(t *testing.T) {
	session := &fakeSession{
		t:         t,
		pages:     map[models.Category]string{"Comedy": listingPage("", comedyEntries...)},
		revealErr: ErrTimeout{Err: context.DeadlineExceeded},
	}

	result, err := NewPaginator(session, 3).Run(context.Background(), "Comedy")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Exhaustion != ExhaustedRevealFailed {
		t.Fatalf("exhaustion = %q", result.Exhaustion)
	}
	if len(result.Entries) != len(comedyEntries) {
		t.Fatalf("entries = %d, want %d", len(result.Entries), len(comedyEntries))
	}
}

func TestPaginationStateString(t *testing.T) {
	states := map[PaginationState]string{
		StateClosed:    "closed",
		StateExpanding: "expanding",
		StateLoading:   "loading",
		StateLoaded:    "loaded",
		StateExhausted: "exhausted",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
