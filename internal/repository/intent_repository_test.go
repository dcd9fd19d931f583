package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupIntentRepositoryTest(t *testing.T) (*GormIntentRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:intent_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PaymentIntent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewIntentRepository(db), db
}

func createTestIntent(t *testing.T, repo *GormIntentRepository, status string, code string, expiresAt time.Time) *models.PaymentIntent {
	t.Helper()
	now := time.Now()
	intent := &models.PaymentIntent{
		ID:               uuid.NewString(),
		MerchantID:       1,
		PaylinkID:        1,
		ProductID:        1,
		RecipientAddress: "account-hash-abc",
		Network:          constants.NetworkTestnet,
		ExpectedAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(12)),
		CorrelationCode:  code,
		Status:           status,
		PartialTransfers: models.TransferList{},
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        expiresAt,
	}
	if err := repo.Create(intent); err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	return intent
}

func TestIntentRepositoryGetByID(t *testing.T) {
	repo, _ := setupIntentRepositoryTest(t)
	intent := createTestIntent(t, repo, constants.IntentStatusPending, "1234", time.Now().Add(time.Hour))

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("get by id failed: %v", err)
	}
	if got == nil || got.ID != intent.ID {
		t.Fatalf("get by id got %+v", got)
	}

	missing, err := repo.GetByID(uuid.NewString())
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing intent want nil got %+v", missing)
	}
}

func TestIntentRepositoryUpdateIfStatusConditional(t *testing.T) {
	repo, _ := setupIntentRepositoryTest(t)
	intent := createTestIntent(t, repo, constants.IntentStatusPending, "1234", time.Now().Add(time.Hour))

	applied, err := repo.UpdateIfStatus(intent.ID, constants.IntentStatusPending, map[string]interface{}{
		"status":          constants.IntentStatusConfirmed,
		"settlement_hash": "deploy-1",
	})
	if err != nil {
		t.Fatalf("conditional update failed: %v", err)
	}
	if !applied {
		t.Fatalf("conditional update on pending intent should apply")
	}

	// 第二次条件写：状态已不是 pending，必须落空
	applied, err = repo.UpdateIfStatus(intent.ID, constants.IntentStatusPending, map[string]interface{}{
		"status":          constants.IntentStatusConfirmed,
		"settlement_hash": "deploy-2",
	})
	if err != nil {
		t.Fatalf("second conditional update failed: %v", err)
	}
	if applied {
		t.Fatalf("conditional update on settled intent should not apply")
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload intent failed: %v", err)
	}
	if got.Status != constants.IntentStatusConfirmed {
		t.Fatalf("status want confirmed got %s", got.Status)
	}
	if got.SettlementHash != "deploy-1" {
		t.Fatalf("settlement hash want deploy-1 got %s", got.SettlementHash)
	}
}

func TestIntentRepositoryUpdateProgress(t *testing.T) {
	repo, _ := setupIntentRepositoryTest(t)
	intent := createTestIntent(t, repo, constants.IntentStatusPending, "1234", time.Now().Add(time.Hour))

	transfers := models.TransferList{
		{
			Hash:        "deploy-1",
			Sender:      "payer-1",
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromInt(5)),
			BlockHeight: 100,
			Timestamp:   time.Now().UTC().Truncate(time.Second),
		},
	}
	if err := repo.UpdateProgress(intent.ID, transfers, models.NewMoneyFromDecimal(decimal.NewFromInt(5))); err != nil {
		t.Fatalf("update progress failed: %v", err)
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload intent failed: %v", err)
	}
	if got.Status != constants.IntentStatusPending {
		t.Fatalf("progress update must not change status, got %s", got.Status)
	}
	if len(got.PartialTransfers) != 1 || got.PartialTransfers[0].Hash != "deploy-1" {
		t.Fatalf("partial transfers not persisted: %+v", got.PartialTransfers)
	}
	if !got.TotalReceived.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("total received want 5 got %s", got.TotalReceived.String())
	}
}

func TestIntentRepositoryDeleteIfPending(t *testing.T) {
	repo, _ := setupIntentRepositoryTest(t)
	pending := createTestIntent(t, repo, constants.IntentStatusPending, "1111", time.Now().Add(time.Hour))
	confirmed := createTestIntent(t, repo, constants.IntentStatusConfirmed, "2222", time.Now().Add(time.Hour))

	deleted, err := repo.DeleteIfPending(pending.ID)
	if err != nil {
		t.Fatalf("delete pending failed: %v", err)
	}
	if !deleted {
		t.Fatalf("pending intent should be deletable")
	}

	deleted, err = repo.DeleteIfPending(confirmed.ID)
	if err != nil {
		t.Fatalf("delete confirmed failed: %v", err)
	}
	if deleted {
		t.Fatalf("confirmed intent must not be deleted")
	}

	got, err := repo.GetByID(confirmed.ID)
	if err != nil {
		t.Fatalf("reload confirmed failed: %v", err)
	}
	if got == nil {
		t.Fatalf("confirmed intent should survive cancel attempt")
	}
}

func TestIntentRepositoryCountPendingByCode(t *testing.T) {
	repo, _ := setupIntentRepositoryTest(t)
	createTestIntent(t, repo, constants.IntentStatusPending, "7777", time.Now().Add(time.Hour))
	createTestIntent(t, repo, constants.IntentStatusConfirmed, "7777", time.Now().Add(time.Hour))

	count, err := repo.CountPendingByCode("7777")
	if err != nil {
		t.Fatalf("count by code failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("pending count want 1 got %d", count)
	}

	count, err = repo.CountPendingByCode("0000")
	if err != nil {
		t.Fatalf("count by free code failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("free code count want 0 got %d", count)
	}
}

func TestIntentRepositoryListPendingWithExpiry(t *testing.T) {
	repo, _ := setupIntentRepositoryTest(t)
	createTestIntent(t, repo, constants.IntentStatusPending, "1111", time.Now().Add(time.Hour))
	createTestIntent(t, repo, constants.IntentStatusFailed, "2222", time.Now().Add(time.Hour))
	createTestIntent(t, repo, constants.IntentStatusPending, "3333", time.Now().Add(time.Hour))

	intents, err := repo.ListPendingWithExpiry()
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("pending list want 2 got %d", len(intents))
	}
	for _, intent := range intents {
		if intent.Status != constants.IntentStatusPending {
			t.Fatalf("non-pending intent in list: %+v", intent)
		}
	}
}
