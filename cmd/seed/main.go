package main

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"slapp/internal/config"
	"slapp/internal/database"
	"slapp/internal/domain"
	"slapp/internal/modules/booking"
	"slapp/internal/pkg/clock"
	"slapp/internal/pkg/validator"
	"slapp/internal/repository"
)

func main() {
	logger := logrus.New()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("DB connection failed")
	}
	if err := database.Migrate(db, repository.Models()...); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	// Cleanup old data, children first
	logger.Info("cleaning old data")
	for _, table := range []string{
		"reservations", "special_prices", "availabilities", "rooms",
		"studio_operating_hours", "studios", "cancellation_policies",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			logger.WithError(err).WithField("table", table).Fatal("cleanup failed")
		}
	}

	ctx := context.Background()
	catalog := repository.NewCatalog(db)

	// ================== STUDIO ==================
	policy := &domain.CancellationPolicy{
		Name:             "48 hours, half back",
		Description:      "Cancel at least 48 hours ahead to get 50% back.",
		HoursBeforeEvent: 48,
		RefundPercentage: 50,
		Active:           true,
	}
	mustValid(logger, policy)
	must(logger, catalog.Studios.CreateCancellationPolicy(ctx, policy), "create policy")

	studio := &domain.Studio{
		OwnerID:              1,
		Name:                 "Basement Tapes",
		Address:              "Hauptstrasse 12",
		City:                 "Berlin",
		Timezone:             "Europe/Berlin",
		CancellationPolicyID: &policy.ID,
		IsActive:             true,
	}
	mustValid(logger, studio)
	must(logger, catalog.Studios.Create(ctx, studio), "create studio")

	hours := weekHours(studio.ID)
	must(logger, booking.ValidateWeek(hours), "validate hours")
	must(logger, catalog.Studios.SetOperatingHours(ctx, studio.ID, hours), "set hours")

	// ================== ROOMS ==================
	rooms := []*domain.Room{
		{StudioID: studio.ID, Name: "Live Room", Description: "Drum kit, two amps", HourlyRate: decimal.RequireFromString("25.00"), Capacity: 6, IsActive: true},
		{StudioID: studio.ID, Name: "Vocal Booth", HourlyRate: decimal.RequireFromString("15.00"), Capacity: 2, IsActive: true},
		{StudioID: studio.ID, Name: "Control Room B", Description: "Closed for renovation", HourlyRate: decimal.RequireFromString("40.00"), Capacity: 4},
	}
	for _, room := range rooms {
		mustValid(logger, room)
		must(logger, catalog.Rooms.Create(ctx, room), "create room")
	}
	live := rooms[0]

	// ================== PRICING ==================
	friday, saturday := int(time.Friday), int(time.Saturday)
	nightFrom, nightTo := "20:00", "24:00"
	prices := []*domain.SpecialPrice{
		{RoomID: live.ID, DayOfWeek: &saturday, Price: decimal.RequireFromString("35.00"), Description: "Weekend rate", Active: true},
		{RoomID: live.ID, StartTime: &nightFrom, EndTime: &nightTo, Price: decimal.RequireFromString("30.00"), Description: "Evening rate", Active: true},
		{RoomID: live.ID, DayOfWeek: &friday, StartTime: &nightFrom, EndTime: &nightTo, Price: decimal.RequireFromString("40.00"), Description: "Friday night", Active: true},
	}
	for _, p := range prices {
		mustValid(logger, p)
		must(logger, catalog.Rooms.CreateSpecialPrice(ctx, p), "create special price")
	}

	// ================== OVERRIDES ==================
	loc, err := studio.Location()
	if err != nil {
		logger.WithError(err).Fatal("studio timezone")
	}
	monday := nextWeekday(time.Now().In(loc), time.Monday)
	must(logger, catalog.Rooms.CreateOverride(ctx, &domain.Availability{
		RoomID:    live.ID,
		StartTime: monday.Add(12 * time.Hour),
		EndTime:   monday.Add(14 * time.Hour),
		Reason:    "maintenance",
	}), "create override")

	// ================== RESERVATIONS ==================
	svc := booking.NewService(
		catalog,
		repository.NewReservationRepository(db),
		repository.NewGormTxManager(db),
		clock.Real{},
		logger,
		booking.Config{AllowOverrideOpening: cfg.AllowOverrideOpening},
	)
	res, err := svc.CreateReservation(ctx, booking.CreateReservationRequest{
		RoomID:      live.ID,
		CustomerID:  100,
		StartTime:   monday.Add(10 * time.Hour),
		EndTime:     monday.Add(12 * time.Hour),
		ArtistName:  "The Tuesdays",
		Instruments: "drums, bass, guitar",
	})
	must(logger, err, "create reservation")
	_, err = svc.Approve(ctx, res.ID)
	must(logger, err, "approve reservation")

	_, err = svc.CreateReservation(ctx, booking.CreateReservationRequest{
		RoomID:     rooms[1].ID,
		CustomerID: 101,
		StartTime:  monday.Add(18 * time.Hour),
		EndTime:    monday.Add(20 * time.Hour),
		ArtistName: "Solo Act",
	})
	must(logger, err, "create pending reservation")

	logger.WithFields(logrus.Fields{
		"studio_id": studio.ID,
		"rooms":     len(rooms),
		"prices":    len(prices),
	}).Info("seed completed")
}

func weekHours(studioID int64) []domain.StudioOperatingHours {
	open, close := "10:00", "24:00"
	hours := make([]domain.StudioOperatingHours, 0, 7)
	for d := 0; d < 7; d++ {
		h := domain.StudioOperatingHours{StudioID: studioID, DayOfWeek: d, IsOpen: d != int(time.Sunday)}
		if h.IsOpen {
			h.StartTime, h.EndTime = &open, &close
		}
		hours = append(hours, h)
	}
	return hours
}

// nextWeekday is local midnight of the next wd strictly after now.
func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	diff := (int(wd) - int(now.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	d := now.AddDate(0, 0, diff)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
}

func mustValid(logger *logrus.Logger, v any) {
	if errs := validator.Validate(v); errs != nil {
		logger.WithField("errors", errs).Fatalf("invalid seed record %T", v)
	}
}

func must(logger *logrus.Logger, err error, what string) {
	if err != nil {
		logger.WithError(err).Fatal(what + " failed")
	}
}
