package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/timeline"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/mmdatafocus/cashflow_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "cashflow_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return utils.SetBusinessIdInContext(ctx, "biz-integration")
}

func createFigma(t *testing.T, ctx context.Context) *models.Subscription {
	t.Helper()
	endDate := "2025-12-31"
	sub, err := models.CreateSubscription(ctx, &models.NewSubscription{
		Name:       "Figma",
		Category:   "design",
		Amount:     utils.Amount{Decimal: decimal.NewFromInt(100)},
		Recurrence: "monthly",
		StartDate:  "2025-01-10",
		EndDate:    &endDate,
	})
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	return sub
}

func newIntegrationEngine(now time.Time) *timeline.Engine {
	clock := timeline.ClockFunc(func() time.Time { return now })
	return timeline.NewEngine(models.NewTimelineRepository(), clock, logrus.New())
}

func TestTimelineReconciliation_PartialThenFullPayment(t *testing.T) {
	ctx := setupIntegration(t)
	sub := createFigma(t, ctx)
	engine := newIntegrationEngine(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	april := timeline.NewMonth(2025, time.April)

	view, err := engine.AddPayment(ctx, timeline.AddPaymentInput{
		SubscriptionId: sub.ID,
		Month:          april,
		PaidDate:       time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("AddPayment(40): %v", err)
	}
	if view.Status != timeline.StatusPastDue || !view.Remaining.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("after partial payment: status=%s remaining=%s", view.Status, view.Remaining)
	}
	if view.ProjectionEntry == nil || view.ProjectionEntry.IsPaid {
		t.Fatalf("expected unpaid projection row, got %+v", view.ProjectionEntry)
	}

	view, err = engine.AddPayment(ctx, timeline.AddPaymentInput{
		SubscriptionId: sub.ID,
		Month:          april,
		PaidDate:       time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewFromInt(60),
	})
	if err != nil {
		t.Fatalf("AddPayment(60): %v", err)
	}
	if view.Status != timeline.StatusPaid || !view.ProjectionEntry.IsPaid {
		t.Fatalf("after full payment: status=%s row=%+v", view.Status, view.ProjectionEntry)
	}
	if len(view.Payments) != 2 {
		t.Fatalf("expected 2 payments; got %d", len(view.Payments))
	}

	// The paid transition leaves one outbox record; processing it books the expense once.
	db := config.GetDB()
	var records []models.PubSubMessageRecord
	if err := db.WithContext(ctx).
		Where("subscription_id = ? AND month = ?", sub.ID, april.String()).
		Order("id").
		Find(&records).Error; err != nil {
		t.Fatalf("list outbox records: %v", err)
	}
	if len(records) != 1 || records[0].EventType != models.OccurrenceEventPaid {
		t.Fatalf("expected one OCCURRENCE_PAID record; got %+v", records)
	}

	msg := models.ConvertToPubSubMessage(records[0])
	logger := logrus.New()
	for i := 0; i < 2; i++ {
		if err := workflow.ProcessMessage(ctx, logger, msg); err != nil {
			t.Fatalf("ProcessMessage(attempt %d): %v", i+1, err)
		}
	}
	expenses, err := models.ListSubscriptionExpenses(ctx, sub.ID)
	if err != nil {
		t.Fatalf("ListSubscriptionExpenses: %v", err)
	}
	if len(expenses) != 1 || !expenses[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected one expense of 100; got %+v", expenses)
	}
}

func TestTimelineReconciliation_MarkUnpaidKeepsPayments(t *testing.T) {
	ctx := setupIntegration(t)
	sub := createFigma(t, ctx)
	engine := newIntegrationEngine(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	march := timeline.NewMonth(2025, time.March)

	if _, err := engine.MarkPaid(ctx, timeline.MarkPaidInput{
		SubscriptionId: sub.ID,
		Month:          march,
		PaidDate:       time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	view, err := engine.MarkUnpaid(ctx, timeline.MarkUnpaidInput{SubscriptionId: sub.ID, Month: march})
	if err != nil {
		t.Fatalf("MarkUnpaid: %v", err)
	}
	if view.ProjectionEntry == nil || view.ProjectionEntry.IsPaid {
		t.Fatalf("expected row flagged unpaid; got %+v", view.ProjectionEntry)
	}
	if len(view.Payments) != 1 {
		t.Fatalf("expected ledger payment to survive; got %d", len(view.Payments))
	}

	purge := true
	view, err = engine.MarkUnpaid(ctx, timeline.MarkUnpaidInput{SubscriptionId: sub.ID, Month: march, DeletePayments: &purge})
	if err != nil {
		t.Fatalf("MarkUnpaid(purge): %v", err)
	}
	if len(view.Payments) != 0 || view.Status != timeline.StatusPastDue {
		t.Fatalf("after purge: payments=%d status=%s", len(view.Payments), view.Status)
	}
}

func TestGenerateProjections_IsIdempotent(t *testing.T) {
	ctx := setupIntegration(t)
	sub := createFigma(t, ctx)
	engine := newIntegrationEngine(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	from := timeline.NewMonth(2025, time.January)
	to := timeline.NewMonth(2025, time.December)

	first, err := engine.GenerateProjections(ctx, sub.ID, from, to)
	if err != nil {
		t.Fatalf("GenerateProjections: %v", err)
	}
	if first.Created != 12 || first.Existing != 0 {
		t.Fatalf("first run: %+v", first)
	}
	second, err := engine.GenerateProjections(ctx, sub.ID, from, to)
	if err != nil {
		t.Fatalf("GenerateProjections(again): %v", err)
	}
	if second.Created != 0 || second.Existing != 12 {
		t.Fatalf("second run: %+v", second)
	}

	// Rows are tenant scoped: another business sees nothing.
	other := utils.SetBusinessIdInContext(ctx, "biz-other")
	rows, err := models.NewTimelineRepository().ListProjectionEntries(other, sub.ID, "", "")
	if err != nil {
		t.Fatalf("ListProjectionEntries(other): %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows for another business; got %d", len(rows))
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cashflow-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("cashflow-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=cashflow_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
