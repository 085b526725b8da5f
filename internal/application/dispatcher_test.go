package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/interview-scheduler/internal/persistence"
	. "github.com/example/interview-scheduler/internal/application"
	"github.com/example/interview-scheduler/internal/testfixtures"
)

func TestDispatcher_RoutingTable(t *testing.T) {
	booking := testfixtures.Booking()

	cases := []struct {
		name string
		fire func(*Dispatcher, context.Context)
		want map[RecipientClass]string
	}{
		{
			name: "booking created goes to mentor and admin",
			fire: func(d *Dispatcher, ctx context.Context) { d.BookingCreated(ctx, booking) },
			want: map[RecipientClass]string{RecipientMentor: "mentor_1", RecipientAdmin: "admin-channel"},
		},
		{
			name: "cancellation by student goes to mentor and admin",
			fire: func(d *Dispatcher, ctx context.Context) { d.BookingCancelled(ctx, booking, ActorStudent) },
			want: map[RecipientClass]string{RecipientMentor: "mentor_1", RecipientAdmin: "admin-channel"},
		},
		{
			name: "cancellation by mentor goes to student and admin",
			fire: func(d *Dispatcher, ctx context.Context) { d.BookingCancelled(ctx, booking, ActorMentor) },
			want: map[RecipientClass]string{RecipientStudent: "1001", RecipientAdmin: "admin-channel"},
		},
		{
			name: "reminder goes to student and mentor",
			fire: func(d *Dispatcher, ctx context.Context) { d.ReminderFired(ctx, booking) },
			want: map[RecipientClass]string{RecipientStudent: "1001", RecipientMentor: "mentor_1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifier := testfixtures.NewRecordingNotifier()
			dispatcher := NewDispatcher(notifier, newUserStoreStub(), "admin-channel", nil)

			tc.fire(dispatcher, context.Background())

			sent := notifier.Sent()
			if len(sent) != len(tc.want) {
				t.Fatalf("expected %d notifications, got %d", len(tc.want), len(sent))
			}
			for _, notification := range sent {
				wantID, ok := tc.want[notification.Class]
				if !ok {
					t.Fatalf("unexpected recipient class %s", notification.Class)
				}
				if notification.RecipientID != wantID {
					t.Fatalf("class %s expected recipient %q, got %q", notification.Class, wantID, notification.RecipientID)
				}
			}
		})
	}
}

func TestDispatcher_DeliveryFailureIsolated(t *testing.T) {
	notifier := testfixtures.NewRecordingNotifier()
	notifier.FailFor("mentor_1", errors.New("chat unreachable"))
	dispatcher := NewDispatcher(notifier, newUserStoreStub(), "admin-channel", nil)

	dispatcher.BookingCreated(context.Background(), testfixtures.Booking())

	if got := len(notifier.SentTo(RecipientAdmin)); got != 1 {
		t.Fatalf("admin delivery must survive the mentor failure, got %d", got)
	}
	if got := len(notifier.SentTo(RecipientMentor)); got != 0 {
		t.Fatalf("failed delivery must not be recorded as sent, got %d", got)
	}
}

func TestDispatcher_Broadcast(t *testing.T) {
	t.Run("one notification per known user", func(t *testing.T) {
		notifier := testfixtures.NewRecordingNotifier()
		users := newUserStoreStub()
		users.users[1] = testfixtures.User(func(u *persistence.User) { u.ID = 1 })
		users.users[2] = testfixtures.User(func(u *persistence.User) { u.ID = 2 })

		dispatcher := NewDispatcher(notifier, users, "admin-channel", nil)

		sent, err := dispatcher.Broadcast(context.Background(), "hello")
		if err != nil {
			t.Fatalf("broadcast failed: %v", err)
		}
		if sent != 2 {
			t.Fatalf("expected 2 sends, got %d", sent)
		}
	})

	t.Run("individual failures are skipped", func(t *testing.T) {
		notifier := testfixtures.NewRecordingNotifier()
		notifier.FailFor("1", errors.New("blocked the bot"))
		users := newUserStoreStub()
		users.users[1] = testfixtures.User(func(u *persistence.User) { u.ID = 1 })
		users.users[2] = testfixtures.User(func(u *persistence.User) { u.ID = 2 })

		dispatcher := NewDispatcher(notifier, users, "admin-channel", nil)

		sent, err := dispatcher.Broadcast(context.Background(), "hello")
		if err != nil {
			t.Fatalf("broadcast failed: %v", err)
		}
		if sent != 1 {
			t.Fatalf("expected 1 successful send, got %d", sent)
		}
	})

	t.Run("listing failure surfaces as persistence error", func(t *testing.T) {
		notifier := testfixtures.NewRecordingNotifier()
		users := newUserStoreStub()
		users.listErr = errors.New("db gone")

		dispatcher := NewDispatcher(notifier, users, "admin-channel", nil)

		_, err := dispatcher.Broadcast(context.Background(), "hello")
		var pErr *PersistenceError
		if !errors.As(err, &pErr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
	})
}
