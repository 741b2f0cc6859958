package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/models"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/openretail/backoffice_backend/workflow"
	"github.com/shopspring/decimal"
)

// End-to-end posting lifecycle: sell, pay, purchase, cancel, refund, and
// verify the cached stock balance still matches the movement ledger.
func TestRetailPostingLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "backoffice_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	company, err := models.CreateCompany(ctx, &models.NewCompany{
		Name:  "Test Shop",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	ctx = utils.SetCompanyIdInContext(ctx, company.ID)

	// Company creation seeds the default unit catalog.
	pieces := mustFindUnit(t, ctx, company.ID, "Pieces")

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:          "Espresso Beans 1kg",
		Sku:           "BEANS-001",
		UnitId:        &pieces.ID,
		CostPrice:     d("150"),
		SellingPrice:  d("250"),
		InitialStock:  d("10"),
		MinStockLevel: d("2"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if !product.StockQuantity.Equal(d("10")) {
		t.Fatalf("initial stock = %s, want 10", product.StockQuantity)
	}
	movements, err := models.GetStockMovements(ctx, product.ID, 0)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 1 || movements[0].ReferenceType != models.StockRefInitialStock {
		t.Fatalf("expected a single initial_stock movement, got %+v", movements)
	}

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Ada"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if customer.CustomerCode != "CUST-0001" {
		t.Fatalf("customer code = %s, want CUST-0001", customer.CustomerCode)
	}

	// Sale of 3 deducts stock and settles in full.
	sale1, err := workflow.CreateSale(ctx, &models.NewSale{
		CustomerId: &customer.ID,
		Items: []models.NewSaleItem{
			{ProductId: product.ID, Quantity: d("3")},
		},
		AmountPaid: d("750"),
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if !strings.HasPrefix(sale1.SaleNumber, "SALE-") || !strings.HasSuffix(sale1.SaleNumber, "-0001") {
		t.Fatalf("sale number = %s", sale1.SaleNumber)
	}
	if !sale1.TotalAmount.Equal(d("750")) {
		t.Fatalf("sale total = %s, want 750", sale1.TotalAmount)
	}
	if sale1.PaymentStatus != utils.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", sale1.PaymentStatus)
	}
	assertStock(t, ctx, product.ID, "7")

	// The posting lock must be free again once the sale is committed, even
	// though the session went back to the pool.
	var lockFree int
	if err := config.GetDB().Raw("SELECT IS_FREE_LOCK(?)", "posting:"+company.ID).Scan(&lockFree).Error; err != nil {
		t.Fatalf("IS_FREE_LOCK: %v", err)
	}
	if lockFree != 1 {
		t.Fatal("posting lock still held after commit")
	}

	customer = mustGetCustomer(t, ctx, customer.ID)
	if customer.TotalOrders != 1 || !customer.TotalSpent.Equal(d("750")) {
		t.Fatalf("rollup = %s / %d, want 750 / 1", customer.TotalSpent, customer.TotalOrders)
	}

	// Selling more than is on hand must fail without touching the ledger.
	_, err = workflow.CreateSale(ctx, &models.NewSale{
		Items: []models.NewSaleItem{
			{ProductId: product.ID, Quantity: d("100")},
		},
	})
	var insufficient *utils.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	assertStock(t, ctx, product.ID, "7")

	// Purchase of 10 at a new cost restocks and rolls the purchase cost
	// forward.
	purchase, err := workflow.CreatePurchase(ctx, &models.NewPurchase{
		Items: []models.NewPurchaseItem{
			{ProductId: product.ID, Quantity: d("10"), UnitCost: d("120")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if !strings.HasPrefix(purchase.PurchaseNumber, "PUR-") {
		t.Fatalf("purchase number = %s", purchase.PurchaseNumber)
	}
	assertStock(t, ctx, product.ID, "17")

	fresh, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !fresh.LastPurchaseCost.Equal(d("120")) {
		t.Fatalf("last purchase cost = %s, want 120", fresh.LastPurchaseCost)
	}
	// Manual cost method keeps cost_price pinned.
	if !fresh.CostPrice.Equal(d("150")) {
		t.Fatalf("cost price = %s, want 150", fresh.CostPrice)
	}

	// Drain stock below the purchased quantity, then cancellation must be
	// rejected outright.
	sale2, err := workflow.CreateSale(ctx, &models.NewSale{
		CustomerId: &customer.ID,
		Items: []models.NewSaleItem{
			{ProductId: product.ID, Quantity: d("10")},
		},
	})
	if err != nil {
		t.Fatalf("CreateSale 2: %v", err)
	}
	assertStock(t, ctx, product.ID, "7")

	_, err = workflow.CancelPurchase(ctx, purchase.ID, "wrong delivery")
	var stateErr *utils.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
	assertStock(t, ctx, product.ID, "7")

	// Refund of the first sale restocks and drops it from the rollup.
	refunded, err := workflow.RefundSale(ctx, sale1.ID, &models.RefundSale{Reason: "customer returned goods"})
	if err != nil {
		t.Fatalf("RefundSale: %v", err)
	}
	if refunded.Status != models.SaleStatusRefunded {
		t.Fatalf("status = %s, want refunded", refunded.Status)
	}
	if refunded.PaymentStatus != utils.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", refunded.PaymentStatus)
	}
	if !strings.Contains(refunded.Notes, "REFUNDED: customer returned goods (Amount: 750.00)") {
		t.Fatalf("notes = %q", refunded.Notes)
	}
	assertStock(t, ctx, product.ID, "10")

	customer = mustGetCustomer(t, ctx, customer.ID)
	if customer.TotalOrders != 1 || !customer.TotalSpent.Equal(d("2500")) {
		t.Fatalf("rollup after refund = %s / %d, want 2500 / 1", customer.TotalSpent, customer.TotalOrders)
	}

	// Refunding twice is a state error.
	if _, err := workflow.RefundSale(ctx, sale1.ID, &models.RefundSale{Reason: "again"}); !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError on double refund, got %v", err)
	}

	// Installments against the open sale walk pending -> partial -> paid.
	paid, err := workflow.AddSalePayment(ctx, sale2.ID, &models.NewPayment{Amount: d("1000")})
	if err != nil {
		t.Fatalf("AddSalePayment: %v", err)
	}
	if paid.PaymentStatus != utils.PaymentStatusPartial || !paid.AmountDue.Equal(d("1500")) {
		t.Fatalf("after first installment: %s due %s", paid.PaymentStatus, paid.AmountDue)
	}
	var validationErr *utils.ValidationError
	if _, err := workflow.AddSalePayment(ctx, sale2.ID, &models.NewPayment{Amount: d("2000")}); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError on overpayment, got %v", err)
	}
	paid, err = workflow.AddSalePayment(ctx, sale2.ID, &models.NewPayment{Amount: d("1500")})
	if err != nil {
		t.Fatalf("AddSalePayment 2: %v", err)
	}
	if paid.PaymentStatus != utils.PaymentStatusPaid || !paid.AmountDue.IsZero() {
		t.Fatalf("after final installment: %s due %s", paid.PaymentStatus, paid.AmountDue)
	}
	if _, err := workflow.AddSalePayment(ctx, sale2.ID, &models.NewPayment{Amount: d("1")}); !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError on paying a settled sale, got %v", err)
	}

	// The cached balance and the ledger must agree after all of the above.
	history, err := models.GetStockMovements(ctx, product.ID, 0)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	// Newest first; replay wants chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	replayed := models.ReplayMovements(history)
	final, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !replayed.Equal(final.StockQuantity) {
		t.Fatalf("ledger replay = %s, cached = %s", replayed, final.StockQuantity)
	}

	// A sale-level percentage discount lands in discount_amount, and the
	// header stays arithmetically consistent with profit taken off the
	// tax-inclusive total.
	sale3, err := workflow.CreateSale(ctx, &models.NewSale{
		Items: []models.NewSaleItem{
			{ProductId: product.ID, Quantity: d("2")},
		},
		DiscountPercentage: d("10"),
		TaxAmount:          d("20"),
	})
	if err != nil {
		t.Fatalf("CreateSale 3: %v", err)
	}
	if !sale3.Subtotal.Equal(d("500")) || !sale3.DiscountAmount.Equal(d("50")) {
		t.Fatalf("subtotal = %s discount = %s, want 500 / 50", sale3.Subtotal, sale3.DiscountAmount)
	}
	if !sale3.TotalAmount.Equal(sale3.Subtotal.Sub(sale3.DiscountAmount).Add(sale3.TaxAmount)) {
		t.Fatalf("total %s != subtotal %s - discount %s + tax %s",
			sale3.TotalAmount, sale3.Subtotal, sale3.DiscountAmount, sale3.TaxAmount)
	}
	if !sale3.TotalAmount.Equal(d("470")) || !sale3.ProfitAmount.Equal(d("170")) {
		t.Fatalf("total = %s profit = %s, want 470 / 170", sale3.TotalAmount, sale3.ProfitAmount)
	}
	if len(sale3.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(sale3.Items))
	}
	item := sale3.Items[0]
	if item.ProductSku != "BEANS-001" || item.UnitId == nil || *item.UnitId != pieces.ID {
		t.Fatalf("item snapshot sku = %q unit = %v", item.ProductSku, item.UnitId)
	}
	assertStock(t, ctx, product.ID, "8")

	// A partial refund without restock records the amount and leaves the
	// shelf alone.
	noRestock := false
	partialAmount := d("200")
	partial, err := workflow.RefundSale(ctx, sale3.ID, &models.RefundSale{
		Reason:       "price adjustment",
		RestockItems: &noRestock,
		RefundAmount: &partialAmount,
	})
	if err != nil {
		t.Fatalf("RefundSale partial: %v", err)
	}
	if !strings.Contains(partial.Notes, "REFUNDED: price adjustment (Amount: 200.00)") {
		t.Fatalf("notes = %q", partial.Notes)
	}
	assertStock(t, ctx, product.ID, "8")

	// A refund bigger than the sale total is rejected.
	over := d("9999")
	if _, err := workflow.RefundSale(ctx, sale2.ID, &models.RefundSale{
		Reason:       "too much",
		RefundAmount: &over,
	}); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError on oversized refund, got %v", err)
	}
}

// Manual adjustments clamp at zero like every other ledger write.
func TestManualAdjustmentClampsAtZero(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "backoffice_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Clamp Shop", Email: "clamp@test.local"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	ctx = utils.SetCompanyIdInContext(ctx, company.ID)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:         "Widget",
		CostPrice:    d("10"),
		SellingPrice: d("15"),
		InitialStock: d("5"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	adjusted, clamped, err := workflow.AdjustProductStock(ctx, product.ID, d("-8"), "shrinkage")
	if err != nil {
		t.Fatalf("AdjustProductStock: %v", err)
	}
	if !clamped {
		t.Fatal("expected the adjustment to be clamped")
	}
	if !adjusted.StockQuantity.IsZero() {
		t.Fatalf("stock = %s, want 0", adjusted.StockQuantity)
	}

	movements, err := models.GetStockMovements(ctx, product.ID, 0)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("movements = %d, want 2", len(movements))
	}
	// Newest first; the shrinkage row carries the applied delta and no
	// document reference.
	if !movements[0].Quantity.Equal(d("-5")) || movements[0].ReferenceId != 0 {
		t.Fatalf("shrinkage movement = %+v", movements[0])
	}

	// Adjusting an empty shelf further down clamps to a clean no-op, not a
	// write conflict, and leaves no ledger row.
	again, clamped, err := workflow.AdjustProductStock(ctx, product.ID, d("-5"), "shrinkage")
	if err != nil {
		t.Fatalf("AdjustProductStock at zero: %v", err)
	}
	if !clamped || !again.StockQuantity.IsZero() {
		t.Fatalf("clamped = %v stock = %s, want true / 0", clamped, again.StockQuantity)
	}
	movements, err = models.GetStockMovements(ctx, product.ID, 0)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("movements after no-op = %d, want 2", len(movements))
	}

	set, err := workflow.SetProductStock(ctx, product.ID, d("12"), "cycle count")
	if err != nil {
		t.Fatalf("SetProductStock: %v", err)
	}
	if !set.StockQuantity.Equal(d("12")) {
		t.Fatalf("stock = %s, want 12", set.StockQuantity)
	}
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func assertStock(t *testing.T, ctx context.Context, productId int, want string) {
	t.Helper()
	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !product.StockQuantity.Equal(d(want)) {
		t.Fatalf("stock = %s, want %s", product.StockQuantity, want)
	}
}

func mustGetCustomer(t *testing.T, ctx context.Context, id int) *models.Customer {
	t.Helper()
	customer, err := models.GetCustomer(ctx, id)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	return customer
}

func mustFindUnit(t *testing.T, ctx context.Context, companyId string, name string) *models.Unit {
	t.Helper()
	db := config.GetDB()
	var unit models.Unit
	if err := db.WithContext(ctx).Where("company_id = ? AND name = ?", companyId, name).First(&unit).Error; err != nil {
		t.Fatalf("fetch unit %s: %v", name, err)
	}
	return &unit
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("backoffice-test-redis-%d", time.Now().UnixNano())
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
	name := fmt.Sprintf("backoffice-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=backoffice_test",
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
