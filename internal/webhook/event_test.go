package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
)

func TestSendDeriveEventUsesStatusForEventHeader(t *testing.T) {
	var gotEvt string
	var got DeriveEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvt = r.Header.Get(HeaderEvent)
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{MaxAttempts: 1})
	event := DeriveEvent{
		JobID:      "derive-1",
		Status:     domain.StatusFailed,
		InputPath:  "beach.jpg",
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Error:      "decode source: unexpected EOF",
	}
	if err := client.SendDeriveEvent(context.Background(), srv.URL, event); err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	if gotEvt != EventDeriveFailed {
		t.Fatalf("expected event header %s, got %q", EventDeriveFailed, gotEvt)
	}
	if got.JobID != "derive-1" || got.Error != event.Error || !got.FinishedAt.Equal(event.FinishedAt) {
		t.Fatalf("unexpected body %+v", got)
	}
	if got.Downloads != nil || got.Comparisons != nil {
		t.Fatalf("expected empty completion fields on failure, got %+v", got)
	}
}

func TestDeriveEventName(t *testing.T) {
	if name := (DeriveEvent{Status: domain.StatusSucceeded}).Name(); name != EventDeriveCompleted {
		t.Fatalf("expected %s, got %s", EventDeriveCompleted, name)
	}
	if name := (DeriveEvent{Status: domain.StatusFailed}).Name(); name != EventDeriveFailed {
		t.Fatalf("expected %s, got %s", EventDeriveFailed, name)
	}
}
