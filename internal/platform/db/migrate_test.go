package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaDeclaresLedgerTables(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"product_categories", "products", "warehouses", "stock_documents", "stock_document_lines", "stock_ledger", "stock_balances", "document_sequences"} {
		require.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
	require.True(t, strings.Contains(schema, "PRIMARY KEY (product_id, warehouse_id)"))
	require.Contains(t, schema, "id               BIGSERIAL PRIMARY KEY")
	require.Contains(t, schema, "CONSTRAINT products_category_id_fkey REFERENCES product_categories (id)")
	require.Less(t, strings.Index(schema, "TABLE IF NOT EXISTS product_categories"), strings.Index(schema, "TABLE IF NOT EXISTS products "))
}
