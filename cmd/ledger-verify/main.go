package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/models"
)

// ledger-verify replays each product's movement history and compares the
// result with the cached stock_quantity. Mismatches are reported, and
// optionally repaired by resetting the cache to the replayed balance.
func main() {
	companyID := flag.String("company-id", "", "Required: company id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: verify a single product")
	repair := flag.Bool("repair", false, "Write a correcting adjustment for each mismatch")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var products []models.Product
	q := db.Where("company_id = ? AND track_stock = ?", *companyID, true)
	if *productID > 0 {
		q = q.Where("id = ?", *productID)
	}
	if err := q.Find(&products).Error; err != nil {
		fmt.Fprintf(os.Stderr, "load products: %v\n", err)
		os.Exit(1)
	}

	mismatches := 0
	for _, product := range products {
		var movements []models.StockMovement
		err := db.Where("company_id = ? AND product_id = ?", *companyID, product.ID).
			Order("id asc").
			Find(&movements).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "load movements for product %d: %v\n", product.ID, err)
			os.Exit(1)
		}

		replayed := models.ReplayMovements(movements)
		if replayed.Equal(product.StockQuantity) {
			continue
		}
		mismatches++
		fmt.Printf("product %d (%s): cached=%s ledger=%s drift=%s\n",
			product.ID, product.Name,
			product.StockQuantity.String(), replayed.String(),
			product.StockQuantity.Sub(replayed).String())

		if *repair {
			// The ledger is the truth, only the cached balance moves.
			err := db.Model(&models.Product{}).
				Where("id = ? AND company_id = ? AND stock_quantity = ?",
					product.ID, *companyID, product.StockQuantity).
				Update("stock_quantity", replayed).Error
			if err != nil {
				fmt.Fprintf(os.Stderr, "repair product %d: %v\n", product.ID, err)
				os.Exit(1)
			}
			fmt.Printf("product %d repaired to %s\n", product.ID, replayed.String())
		}
	}

	fmt.Printf("checked %d products, %d mismatches\n", len(products), mismatches)
	if mismatches > 0 && !*repair {
		os.Exit(2)
	}
}
