package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/openretail/backoffice_backend/workflow"
)

// rollup-rebuild recomputes every customer's cached purchase totals for a
// company from the sale history.
func main() {
	companyID := flag.String("company-id", "", "Required: company id (uuid)")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetCompanyIdInContext(context.Background(), *companyID)
	count, err := workflow.RecomputeAllCustomerTotals(ctx, *companyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("recomputed totals for %d customers\n", count)
}
