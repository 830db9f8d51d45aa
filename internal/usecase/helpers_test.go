package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"seatwatch-service/internal/domain/entity"
	gormRepo "seatwatch-service/internal/interface/repository"
	"seatwatch-service/pkg/metrics"
)

// newTestDB opens an in-memory sqlite database with the full schema, capped
// at one connection so all sessions share the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&gormRepo.Users{}, &gormRepo.MonitoredRoutes{}, &gormRepo.RouteSubscriptions{}, &gormRepo.Tasks{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestMetrics builds metrics on a private registry so parallel tests
// never trip duplicate registration.
func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetricsWith("seatwatch", prometheus.NewRegistry())
}

func seedVerifiedUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()
	return seedUserWith(t, db, email, true)
}

func seedUserWith(t *testing.T, db *gorm.DB, email string, verified bool) uint {
	t.Helper()
	user := gormRepo.Users{Email: email, Verified: verified}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user.ID
}

func seedSubscription(t *testing.T, db *gorm.DB, userID, routeID uint) {
	t.Helper()
	if err := db.Create(&gormRepo.RouteSubscriptions{UserID: userID, RouteID: routeID}).Error; err != nil {
		t.Fatalf("seed subscription %d/%d: %v", userID, routeID, err)
	}
}

func seedRoute(t *testing.T, db *gorm.DB, providerRouteID, status string, departureAt time.Time) uint {
	t.Helper()
	row := gormRepo.MonitoredRoutes{
		ProviderRouteID:  providerRouteID,
		FromLocationID:   "372825000",
		FromLocationType: entity.LocationTypeStation,
		FromLocationName: "Praha hl.n.",
		ToLocationID:     "1841058000",
		ToLocationType:   entity.LocationTypeStation,
		ToLocationName:   "Brno hl.n.",
		TariffClasses:    entity.DefaultTariff,
		DepartureAt:      departureAt,
		Status:           status,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed route %s: %v", providerRouteID, err)
	}
	return row.ID
}

// stubChecker answers availability checks from a canned function and counts calls
type stubChecker struct {
	mu    sync.Mutex
	calls int
	check func(route *entity.MonitoredRoute) (*entity.Availability, error)
}

func (c *stubChecker) Check(_ context.Context, route *entity.MonitoredRoute) (*entity.Availability, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.check(route)
}

func (c *stubChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func soldOutChecker() *stubChecker {
	return &stubChecker{check: func(*entity.MonitoredRoute) (*entity.Availability, error) {
		return &entity.Availability{Available: false}, nil
	}}
}

func availableChecker(freeSeats int) *stubChecker {
	return &stubChecker{check: func(route *entity.MonitoredRoute) (*entity.Availability, error) {
		return &entity.Availability{
			Available:   true,
			FreeSeats:   freeSeats,
			PriceFrom:   219,
			PriceTo:     349,
			Currency:    "CZK",
			BookingLink: "https://regiojet.cz?departureDate=2026-09-01&fromLocationId=" + route.FromLocationID,
		}, nil
	}}
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

// fakeSender records sends and fails with queued errors first, one per call
type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
	errs []error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, sentEmail{To: to, Subject: subject, Body: body})
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeSender) sentEmails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentEmail, len(f.sent))
	copy(cp, f.sent)
	return cp
}

// fakeDeadLetters collects archived letters in memory
type fakeDeadLetters struct {
	mu      sync.Mutex
	letters []*entity.DeadLetter
}

func (f *fakeDeadLetters) Archive(_ context.Context, letter *entity.DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, letter)
	return nil
}

func (f *fakeDeadLetters) archived() []*entity.DeadLetter {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*entity.DeadLetter, len(f.letters))
	copy(cp, f.letters)
	return cp
}

// fakeNotificationLog collects delivery records in memory
type fakeNotificationLog struct {
	mu      sync.Mutex
	records []*entity.DeliveryRecord
	err     error
}

func (f *fakeNotificationLog) Record(_ context.Context, record *entity.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeNotificationLog) recorded() []*entity.DeliveryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*entity.DeliveryRecord, len(f.records))
	copy(cp, f.records)
	return cp
}
