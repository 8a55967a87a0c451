package service

import (
	"context"
	"testing"
	"time"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/domain/status"
)

func TestRetentionRunOnce(t *testing.T) {
	apps := newFakeApplicationRepo()
	now := time.Now().UTC()

	// Просроченная заявка
	apps.apps["expired-1"] = &model.Application{
		ID:                 "expired-1",
		JobOfferID:         "job-1",
		Status:             status.StatusAnalyzed,
		DataRetentionUntil: now.Add(-24 * time.Hour),
	}
	// Активная заявка (срок не истёк)
	apps.apps["active-1"] = &model.Application{
		ID:                 "active-1",
		JobOfferID:         "job-1",
		Status:             status.StatusPending,
		DataRetentionUntil: now.Add(model.RetentionPeriod),
	}

	rs := NewRetentionService(apps, time.Hour, testLogger())
	deleted := rs.RunOnce(context.Background())

	if deleted != 1 {
		t.Fatalf("хотели 1 удалённую заявку, получили %d", deleted)
	}
	if apps.get("expired-1").DeletedAt == nil {
		t.Error("просроченная заявка должна быть помечена удалённой")
	}
	if apps.get("active-1").DeletedAt != nil {
		t.Error("активная заявка не должна быть затронута")
	}

	// Повторный проход ничего не находит
	if deleted := rs.RunOnce(context.Background()); deleted != 0 {
		t.Errorf("повторный проход: хотели 0, получили %d", deleted)
	}
}

func TestRetentionRunOnce_Empty(t *testing.T) {
	rs := NewRetentionService(newFakeApplicationRepo(), time.Hour, testLogger())

	if deleted := rs.RunOnce(context.Background()); deleted != 0 {
		t.Errorf("пустое хранилище: хотели 0, получили %d", deleted)
	}
}
