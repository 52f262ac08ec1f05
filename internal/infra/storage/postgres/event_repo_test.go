package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/resilience/pool"
)

func newMockDB(t *testing.T) (*DB, *pool.Pool, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return NewDBFromHandle(sqlxDB, 0), pool.New(sqlxDB, pool.Config{}, nil), mock
}

var eventCols = []string{"permit_id", "station_code", "cycle", "arrived_at", "completed_at", "review_result"}

func TestEventRepoListByPermit(t *testing.T) {
	db, cp, mock := newMockDB(t)

	arrived := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	done := arrived.AddDate(0, 0, 12)
	mock.ExpectQuery(`SELECT (.+) FROM routing_events\s+WHERE permit_id = \$1`).
		WithArgs("P-1").
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("P-1", "BLDG", 1, arrived, done, "passed").
			AddRow("P-1", "SFFD", 1, done, nil, "pending"))

	events, err := NewEventRepo(db, cp).ListByPermit(context.Background(), "P-1")
	if err != nil {
		t.Fatalf("ListByPermit: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].StationCode != "BLDG" || events[0].Open() {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].StationCode != "SFFD" || !events[1].Open() {
		t.Errorf("NULL completed_at must map to an open event: %+v", events[1])
	}
	if events[1].Result != domain.ReviewPending {
		t.Errorf("result = %s", events[1].Result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEventRepoListOpenByPermit(t *testing.T) {
	db, cp, mock := newMockDB(t)

	mock.ExpectQuery(`FROM routing_events\s+WHERE permit_id = \$1 AND completed_at IS NULL`).
		WithArgs("P-1").
		WillReturnRows(sqlmock.NewRows(eventCols))

	events, err := NewEventRepo(db, cp).ListOpenByPermit(context.Background(), "P-1")
	if err != nil {
		t.Fatalf("ListOpenByPermit: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEventRepoListCohort(t *testing.T) {
	t.Run("neighborhood scoped", func(t *testing.T) {
		db, cp, mock := newMockDB(t)

		mock.ExpectQuery(`WHERE permit_type = \$1 AND permit_id <> \$2 AND neighborhood = \$3`).
			WithArgs("alteration", "P-1", "Mission").
			WillReturnRows(sqlmock.NewRows(eventCols))

		_, err := NewEventRepo(db, cp).ListCohort(context.Background(), "alteration", "Mission", "P-1")
		if err != nil {
			t.Fatalf("ListCohort: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("city-wide omits the neighborhood filter", func(t *testing.T) {
		db, cp, mock := newMockDB(t)

		mock.ExpectQuery(`WHERE permit_type = \$1 AND permit_id <> \$2 ORDER BY`).
			WithArgs("alteration", "P-1").
			WillReturnRows(sqlmock.NewRows(eventCols))

		_, err := NewEventRepo(db, cp).ListCohort(context.Background(), "alteration", "", "P-1")
		if err != nil {
			t.Fatalf("ListCohort: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestEventRepoListCompleted(t *testing.T) {
	t.Run("bounded window", func(t *testing.T) {
		db, cp, mock := newMockDB(t)
		since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`WHERE completed_at IS NOT NULL AND arrived_at >= \$1`).
			WithArgs(since).
			WillReturnRows(sqlmock.NewRows(eventCols))

		_, err := NewEventRepo(db, cp).ListCompleted(context.Background(), since)
		if err != nil {
			t.Fatalf("ListCompleted: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("zero since means all of history", func(t *testing.T) {
		db, cp, mock := newMockDB(t)

		mock.ExpectQuery(`WHERE completed_at IS NOT NULL ORDER BY`).
			WillReturnRows(sqlmock.NewRows(eventCols))

		_, err := NewEventRepo(db, cp).ListCompleted(context.Background(), time.Time{})
		if err != nil {
			t.Fatalf("ListCompleted: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

// With every slot checked out, repository reads must fail fast with the
// pool sentinel instead of queueing behind the held connection.
func TestEventRepoPoolExhausted(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	cp := pool.New(sqlxDB, pool.Config{MinConns: 1, MaxConns: 1, AcquireTimeout: 20 * time.Millisecond}, nil)

	lease, err := cp.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release()

	repo := NewEventRepo(NewDBFromHandle(sqlxDB, 0), cp)
	if _, err := repo.ListByPermit(context.Background(), "P-1"); !errors.Is(err, pool.ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
}
