package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const notifyProductsQuery = `SELECT pg_notify($1, $2);`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProductDocument(row rowScanner) (*ProductDocument, error) {
	var doc ProductDocument
	var data []byte
	if err := row.Scan(&doc.ID, &data, &doc.Version, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Data = json.RawMessage(data)
	return &doc, nil
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) ListProductDocuments(ctx context.Context) ([]ProductDocument, error) {
	query := `
		SELECT id, document, version, updated_at
		FROM storefront.products
		ORDER BY created_at ASC;
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListProductDocuments failed to query products: %w", err)
	}
	defer rows.Close()

	docs := make([]ProductDocument, 0)
	for rows.Next() {
		doc, err := scanProductDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListProductDocuments failed to scan product row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProductDocuments iteration error: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) GetProductDocument(ctx context.Context, id string) (*ProductDocument, error) {
	query := `
		SELECT id, document, version, updated_at
		FROM storefront.products
		WHERE id = $1;
	`
	doc, err := scanProductDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductDocument failed to scan row: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, doc map[string]any) (*ProductDocument, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to encode document: %w", err)
	}
	query := `
		INSERT INTO storefront.products (id, document)
		VALUES ($1, $2)
		RETURNING id, document, version, updated_at;
	`
	created, err := s.writeProduct(ctx, query, uuid.NewString(), data)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id string, doc map[string]any, expectedVersion *int64) (*ProductDocument, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateProduct failed to encode document: %w", err)
	}
	query := `
		UPDATE storefront.products
		SET document = $1, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND ($3::BIGINT IS NULL OR version = $3)
		RETURNING id, document, version, updated_at;
	`
	version := sql.NullInt64{}
	if expectedVersion != nil {
		version = sql.NullInt64{Int64: *expectedVersion, Valid: true}
	}
	updated, err := s.writeProduct(ctx, query, data, id, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missingOrConflict(ctx, id, expectedVersion != nil)
		}
		return nil, fmt.Errorf("store: UpdateProduct failed: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) PatchProduct(ctx context.Context, id string, fields map[string]any) (*ProductDocument, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("store: PatchProduct failed to encode fields: %w", err)
	}
	query := `
		UPDATE storefront.products
		SET document = document || $1::JSONB, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING id, document, version, updated_at;
	`
	patched, err := s.writeProduct(ctx, query, data, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: PatchProduct failed: %w", err)
	}
	return patched, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM storefront.products WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	if _, err := tx.ExecContext(ctx, notifyProductsQuery, ProductsChannel, id); err != nil {
		return fmt.Errorf("store: DeleteProduct failed to notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: DeleteProduct failed to commit: %w", err)
	}
	return nil
}

// writeProduct runs a single-row product write and announces it on ProductsChannel in
// the same transaction, so listeners only hear about committed changes.
func (s *PostgresStore) writeProduct(ctx context.Context, query string, args ...any) (*ProductDocument, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := scanProductDocument(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, notifyProductsQuery, ProductsChannel, doc.ID); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) missingOrConflict(ctx context.Context, id string, versioned bool) error {
	if !versioned {
		return ErrProductNotFound
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM storefront.products WHERE id = $1);`
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("store: UpdateProduct failed to check existence: %w", err)
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrProductNotFound
}
