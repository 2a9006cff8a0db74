package followup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

type mockDynamo struct {
	putInput     *dynamodb.PutItemInput
	putErr       error
	updateInputs []*dynamodb.UpdateItemInput
	updateErr    error
	getOutput    *dynamodb.GetItemOutput
	getErr       error
}

func (m *mockDynamo) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) UpdateItem(_ context.Context, input *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, input)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

var sampleRequest = CallRequest{
	ContactID: "ct-1",
	Phone:     "+971501234567",
	Name:      "Omar",
	Company:   "Gulf Realty",
	Score:     85,
}

func TestDynamoJobStore_PutPendingPersistsDefaults(t *testing.T) {
	mock := &mockDynamo{}
	store := NewDynamoJobStore(mock, "followup_jobs", logging.Default())

	if err := store.PutPending(context.Background(), &JobRecord{JobID: "job-1", Request: sampleRequest}); err != nil {
		t.Fatalf("PutPending returned error: %v", err)
	}
	if mock.putInput == nil {
		t.Fatal("expected PutItem to be called")
	}

	var stored JobRecord
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored job: %v", err)
	}
	if stored.Status != JobStatusPending {
		t.Fatalf("expected status pending, got %s", stored.Status)
	}
	if stored.Request.Phone != "+971501234567" || stored.Request.Score != 85 {
		t.Fatalf("request not persisted: %+v", stored.Request)
	}
	if stored.CreatedAt == "" || stored.DueAt == "" {
		t.Fatal("expected timestamps to be populated")
	}
	if stored.ExpiresAt <= time.Now().Unix() {
		t.Fatal("expected TTL to be in the future")
	}
	if expr := aws.ToString(mock.putInput.ConditionExpression); expr != "attribute_not_exists(jobId)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %q", expr)
	}
}

func TestDynamoJobStore_PutPendingRejectsEmpty(t *testing.T) {
	store := NewDynamoJobStore(&mockDynamo{}, "followup_jobs", nil)
	if err := store.PutPending(context.Background(), nil); err == nil {
		t.Fatal("expected error when job is nil")
	}
	if err := store.PutPending(context.Background(), &JobRecord{}); err == nil {
		t.Fatal("expected error when job id is empty")
	}
}

func TestDynamoJobStore_MarkCompletedUsesReservedNames(t *testing.T) {
	mock := &mockDynamo{}
	store := NewDynamoJobStore(mock, "followup_jobs", nil)

	if err := store.MarkCompleted(context.Background(), "job-1", "call-9", 1); err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}
	if len(mock.updateInputs) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(mock.updateInputs))
	}
	update := mock.updateInputs[0]
	expr := aws.ToString(update.UpdateExpression)
	if !strings.Contains(expr, "#status = :status") || !strings.Contains(expr, "callId = :call") {
		t.Fatalf("unexpected update expression %q", expr)
	}
	if update.ExpressionAttributeNames["#status"] != "status" {
		t.Fatalf("expected #status placeholder, got %v", update.ExpressionAttributeNames)
	}
	status := update.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS)
	if status.Value != string(JobStatusCompleted) {
		t.Fatalf("status = %s", status.Value)
	}
	call := update.ExpressionAttributeValues[":call"].(*types.AttributeValueMemberS)
	if call.Value != "call-9" {
		t.Fatalf("call id = %s", call.Value)
	}
}

func TestDynamoJobStore_MarkFailedMissingJob(t *testing.T) {
	mock := &mockDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	store := NewDynamoJobStore(mock, "followup_jobs", nil)

	err := store.MarkFailed(context.Background(), "job-1", "boom", 1)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := store.MarkFailed(context.Background(), "", "boom", 1); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestDynamoJobStore_GetJob(t *testing.T) {
	item, err := attributevalue.MarshalMap(JobRecord{JobID: "job-1", Status: JobStatusFailed, Request: sampleRequest, ErrorMessage: "timeout"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	store := NewDynamoJobStore(&mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}}, "followup_jobs", nil)

	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if job.Status != JobStatusFailed || job.ErrorMessage != "timeout" || job.Request.ContactID != "ct-1" {
		t.Fatalf("unexpected job %+v", job)
	}

	missing := NewDynamoJobStore(&mockDynamo{}, "followup_jobs", nil)
	if _, err := missing.GetJob(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryJobStore_Lifecycle(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	if err := store.PutPending(ctx, &JobRecord{JobID: "job-1", Request: sampleRequest}); err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	if err := store.PutPending(ctx, &JobRecord{JobID: "job-1"}); err == nil {
		t.Fatal("expected duplicate job error")
	}
	if err := store.MarkCompleted(ctx, "job-1", "call-1", 1); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	job, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != JobStatusCompleted || job.CallID != "call-1" || job.Attempts != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	if err := store.MarkFailed(ctx, "missing", "x", 1); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestPGJobStore_PutPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO followup_jobs").
		WithArgs("job-1", JobStatusPending, "ct-1", pgxmock.AnyArg(), 0, "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPGJobStore(mock)
	if err := store.PutPending(context.Background(), &JobRecord{JobID: "job-1", Request: sampleRequest}); err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGJobStore_MarkCompletedNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE followup_jobs").
		WithArgs("job-1", JobStatusCompleted, "call-1", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPGJobStore(mock)
	if err := store.MarkCompleted(context.Background(), "job-1", "call-1", 1); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGJobStore_MarkFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE followup_jobs").
		WithArgs("job-1", JobStatusFailed, 1, "voice down", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPGJobStore(mock)
	if err := store.MarkFailed(context.Background(), "job-1", "voice down", 1); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGJobStore_GetJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"status", "request", "call_id", "attempts", "error_message", "due_at", "created_at", "updated_at", "expires_at"}).
		AddRow("completed", []byte(`{"contactId":"ct-1","phone":"+971501234567","score":85}`), "call-1", 1, "", now.Add(5*time.Minute), now, now, now.Add(jobTTL))
	mock.ExpectQuery("SELECT status, request").WithArgs("job-1").WillReturnRows(rows)

	store := NewPGJobStore(mock)
	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != JobStatusCompleted || job.CallID != "call-1" || job.Request.Score != 85 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.DueAt != now.Add(5*time.Minute).Format(time.RFC3339Nano) {
		t.Fatalf("due at = %s", job.DueAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGJobStore_GetJobNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT status, request").WithArgs("nope").WillReturnRows(
		pgxmock.NewRows([]string{"status", "request", "call_id", "attempts", "error_message", "due_at", "created_at", "updated_at", "expires_at"}))

	store := NewPGJobStore(mock)
	if _, err := store.GetJob(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
