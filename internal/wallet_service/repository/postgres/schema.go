package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/harvestdrop/golang_services/internal/wallet_service/repository"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema creates the wallet tables if they do not exist yet.
func ApplySchema(ctx context.Context, q repository.Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying wallet schema: %w", err)
	}
	return nil
}
