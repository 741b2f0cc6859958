package main

import (
	"fmt"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	fmt.Println("migration complete")
}
