package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerpay-next/internal/constants"
	"github.com/ledgerpay-next/internal/ledger"
	"github.com/ledgerpay-next/internal/models"
	"github.com/ledgerpay-next/internal/queue"
	"github.com/ledgerpay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeLedgerClient struct {
	transfers []ledger.Transfer
	err       error
	calls     int
}

func (f *fakeLedgerClient) FindTransfersTo(ctx context.Context, address, network string, since time.Time) ([]ledger.Transfer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.transfers, nil
}

func setupSweepServiceTest(t *testing.T) (*SweepService, *repository.GormIntentRepository, *fakeLedgerClient) {
	t.Helper()
	dsn := fmt.Sprintf("file:sweep_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PaymentIntent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	intentRepo := repository.NewIntentRepository(db)
	ledgerClient := &fakeLedgerClient{}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("create queue client failed: %v", err)
	}
	svc := NewSweepService(intentRepo, ledgerClient, queueClient, 5*time.Minute, 2)
	return svc, intentRepo, ledgerClient
}

func createSweepIntent(t *testing.T, repo *repository.GormIntentRepository, expected decimal.Decimal, expiresAt time.Time) *models.PaymentIntent {
	t.Helper()
	now := time.Now()
	intent := &models.PaymentIntent{
		ID:               uuid.NewString(),
		MerchantID:       1,
		PaylinkID:        7,
		ProductID:        3,
		RecipientAddress: "account-hash-abc",
		Network:          constants.NetworkTestnet,
		ExpectedAmount:   models.NewMoneyFromDecimal(expected),
		CorrelationCode:  "1234",
		Status:           constants.IntentStatusPending,
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

func motes(units int64) string {
	return decimal.NewFromInt(units).Mul(decimal.NewFromInt(constants.MotesPerUnit)).String()
}

func TestSweepOneExpiredBeforeLedgerQuery(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	intent := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(-time.Minute))
	// 即便账本上已有足额转账，过期意图也一律失败
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(12), Hash: "deploy-1", Sender: "payer-1", BlockHeight: 100, Timestamp: time.Now()},
	}

	outcome, err := svc.SweepOne(context.Background(), intent)
	if err != nil {
		t.Fatalf("sweep expired intent failed: %v", err)
	}
	if outcome != constants.SweepOutcomeExpired {
		t.Fatalf("outcome want expired got %s", outcome)
	}
	if ledgerClient.calls != 0 {
		t.Fatalf("expired intent must not hit the ledger, calls %d", ledgerClient.calls)
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload intent failed: %v", err)
	}
	if got.Status != constants.IntentStatusFailed {
		t.Fatalf("status want failed got %s", got.Status)
	}
	if got.FailureReason != constants.FailureReasonTimeout {
		t.Fatalf("failure reason want timeout got %s", got.FailureReason)
	}
}

func TestSweepOneLedgerUnavailableIsSoft(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	intent := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	ledgerClient.err = ledger.ErrUnavailable

	outcome, err := svc.SweepOne(context.Background(), intent)
	if err != nil {
		t.Fatalf("ledger outage must not surface as error: %v", err)
	}
	if outcome != constants.SweepOutcomeNoNewTransfers {
		t.Fatalf("outcome want no_new_transfers got %s", outcome)
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload intent failed: %v", err)
	}
	if got.Status != constants.IntentStatusPending {
		t.Fatalf("outage must leave intent pending, got %s", got.Status)
	}
}

func TestSweepOnePartialThenConfirmed(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	intent := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))

	firstAt := time.Now().UTC().Truncate(time.Second)
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(5), Hash: "deploy-1", Sender: "payer-1", BlockHeight: 100, Timestamp: firstAt},
	}

	outcome, err := svc.SweepOne(context.Background(), intent)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if outcome != constants.SweepOutcomePartial {
		t.Fatalf("outcome want partial got %s", outcome)
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload after partial failed: %v", err)
	}
	if got.Status != constants.IntentStatusPending {
		t.Fatalf("partial payment must stay pending, got %s", got.Status)
	}
	if !got.TotalReceived.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("total received want 5 got %s", got.TotalReceived.String())
	}
	if len(got.PartialTransfers) != 1 {
		t.Fatalf("partial transfers want 1 got %d", len(got.PartialTransfers))
	}

	// 第二轮：账本同时返回旧转账和补足的新转账，旧的按哈希去重
	secondAt := firstAt.Add(time.Minute)
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(5), Hash: "deploy-1", Sender: "payer-1", BlockHeight: 100, Timestamp: firstAt},
		{ID: "1234", Amount: motes(7), Hash: "deploy-2", Sender: "payer-1", BlockHeight: 105, Timestamp: secondAt},
	}

	outcome, err = svc.SweepOne(context.Background(), got)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if outcome != constants.SweepOutcomeConfirmed {
		t.Fatalf("outcome want confirmed got %s", outcome)
	}

	got, err = repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload after confirm failed: %v", err)
	}
	if got.Status != constants.IntentStatusConfirmed {
		t.Fatalf("status want confirmed got %s", got.Status)
	}
	if !got.TotalReceived.Decimal.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("total received want 12 got %s", got.TotalReceived.String())
	}
	if !got.Overpayment.Decimal.IsZero() {
		t.Fatalf("overpayment want 0 got %s", got.Overpayment.String())
	}
	if got.SettlementHash != "deploy-2" {
		t.Fatalf("settlement hash want deploy-2 got %s", got.SettlementHash)
	}
	if got.SettlementSender != "payer-1" || got.SettlementHeight != 105 {
		t.Fatalf("settlement fields not persisted: %+v", got)
	}
	if len(got.PartialTransfers) != 2 {
		t.Fatalf("accepted transfers want 2 got %d", len(got.PartialTransfers))
	}
}

func TestSweepOneRematchSameTransferIsNoop(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	intent := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(5), Hash: "deploy-1", Sender: "payer-1", BlockHeight: 100, Timestamp: time.Now()},
	}

	if _, err := svc.SweepOne(context.Background(), intent); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	outcome, err := svc.SweepOne(context.Background(), got)
	if err != nil {
		t.Fatalf("re-sweep failed: %v", err)
	}
	if outcome != constants.SweepOutcomeNoNewTransfers {
		t.Fatalf("outcome want no_new_transfers got %s", outcome)
	}

	got, err = repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload after re-sweep failed: %v", err)
	}
	if !got.TotalReceived.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("re-sweep must not double count, total %s", got.TotalReceived.String())
	}
	if len(got.PartialTransfers) != 1 {
		t.Fatalf("transfers want 1 got %d", len(got.PartialTransfers))
	}
}

func TestSweepOneOverpayment(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	intent := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(15), Hash: "deploy-1", Sender: "payer-1", BlockHeight: 100, Timestamp: time.Now()},
	}

	outcome, err := svc.SweepOne(context.Background(), intent)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if outcome != constants.SweepOutcomeConfirmed {
		t.Fatalf("outcome want confirmed got %s", outcome)
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !got.TotalReceived.Decimal.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("total received want 15 got %s", got.TotalReceived.String())
	}
	if !got.Overpayment.Decimal.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("overpayment want 3 got %s", got.Overpayment.String())
	}
}

func TestSweepOneConfirmLosesRaceGracefully(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	intent := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(12), Hash: "deploy-1", Sender: "payer-1", BlockHeight: 100, Timestamp: time.Now()},
	}

	if _, err := svc.SweepOne(context.Background(), intent); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}

	// 用确认前的陈旧快照再次清算，条件写落空，但对调用方仍是 confirmed
	ledgerClient.transfers = []ledger.Transfer{
		{ID: "1234", Amount: motes(12), Hash: "deploy-other", Sender: "payer-2", BlockHeight: 200, Timestamp: time.Now()},
	}
	outcome, err := svc.SweepOne(context.Background(), intent)
	if err != nil {
		t.Fatalf("stale sweep failed: %v", err)
	}
	if outcome != constants.SweepOutcomeConfirmed {
		t.Fatalf("outcome want confirmed got %s", outcome)
	}

	got, err := repo.GetByID(intent.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got.SettlementHash != "deploy-1" {
		t.Fatalf("settlement must remain the first transfer, got %s", got.SettlementHash)
	}
	if !got.TotalReceived.Decimal.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("total received want 12 got %s", got.TotalReceived.String())
	}
}

func TestSweepAllIsolatesIntents(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	expired := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(-time.Minute))
	waiting := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	ledgerClient.transfers = nil

	results := svc.SweepAll(context.Background(), []models.PaymentIntent{*expired, *waiting})
	if len(results) != 2 {
		t.Fatalf("results want 2 got %d", len(results))
	}
	outcomes := map[string]string{}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("sweep %s failed: %v", r.IntentID, r.Err)
		}
		outcomes[r.IntentID] = r.Outcome
	}
	if outcomes[expired.ID] != constants.SweepOutcomeExpired {
		t.Fatalf("expired intent outcome want expired got %s", outcomes[expired.ID])
	}
	if outcomes[waiting.ID] != constants.SweepOutcomeNoNewTransfers {
		t.Fatalf("waiting intent outcome want no_new_transfers got %s", outcomes[waiting.ID])
	}
}

func TestSweepPendingSkipsSettledIntents(t *testing.T) {
	svc, repo, ledgerClient := setupSweepServiceTest(t)
	createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	settled := createSweepIntent(t, repo, decimal.NewFromInt(12), time.Now().Add(time.Hour))
	if _, err := repo.UpdateIfStatus(settled.ID, constants.IntentStatusPending, map[string]interface{}{
		"status": constants.IntentStatusConfirmed,
	}); err != nil {
		t.Fatalf("settle intent failed: %v", err)
	}
	ledgerClient.transfers = nil

	results, err := svc.SweepPending(context.Background())
	if err != nil {
		t.Fatalf("sweep pending failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("pending sweep want 1 intent got %d", len(results))
	}
}
