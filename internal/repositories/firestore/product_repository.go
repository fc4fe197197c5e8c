package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/m2l-store/api/internal/domain"
	pfirestore "github.com/m2l-store/api/internal/platform/firestore"
	"github.com/m2l-store/api/internal/repositories"
)

const (
	productsCollection = "products"

	// Firestore caps `in` filters at ten values per query.
	fieldQueryChunkSize = 10
)

// ProductRepository reads catalog documents from Firestore. The documents are
// written by merchandising tooling with loosely typed fields, so decoding goes
// through the lenient coercion helpers rather than native struct decoding.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Product](provider, productsCollection, nil, decodeProduct)
	return &ProductRepository{provider: provider, base: base}, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// GetByIDs fetches products by document id. Missing documents are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("products.getByIds", err)
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		refs = append(refs, client.Collection(productsCollection).Doc(id))
	}
	if len(refs) == 0 {
		return nil, nil
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.getByIds", err)
	}

	products := make([]domain.Product, 0, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		product, err := decodeProduct(ctx, snap)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

// ListByFieldValues fetches products whose field matches any of the given
// values, chunking the `in` filter to stay under Firestore's limit.
func (r *ProductRepository) ListByFieldValues(ctx context.Context, field string, values []any) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, errors.New("product repository: field is required")
	}
	if len(values) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var products []domain.Product
	for start := 0; start < len(values); start += fieldQueryChunkSize {
		end := start + fieldQueryChunkSize
		if end > len(values) {
			end = len(values)
		}
		chunk := values[start:end]

		docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
			return query.Where(field, "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}
			products = append(products, doc.Data)
		}
	}
	return products, nil
}

// List returns catalog entries matching the filter. Ordering is left to the
// caller; merchandising documents carry locale-sensitive names that are
// collated in memory.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Active != nil {
			query = query.Where("active", "==", *filter.Active)
		}
		if filter.Offer != nil {
			query = query.Where("offer", "==", *filter.Offer)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data)
	}
	return products, nil
}

func decodeProduct(_ context.Context, snap *firestore.DocumentSnapshot) (domain.Product, error) {
	return productFromData(snap.Ref.ID, snap.Data()), nil
}

func productFromData(id string, data map[string]any) domain.Product {
	// Legacy catalog documents predate the active flag; absence means the
	// product is sellable.
	active := true
	if raw, ok := data["active"]; ok {
		active = domain.ParseFlag(raw)
	}

	product := domain.Product{
		ID:       id,
		Name:     domain.NormalizeCode(data["name"]),
		Price:    domain.ParsePrice(data["price"]),
		Active:   active,
		Stock:    domain.ParseCount(data["stock"]),
		SKU:      domain.NormalizeCode(data["sku"]),
		AltCode:  domain.NormalizeCode(data["id"]),
		Offer:    domain.ParseFlag(data["offer"]),
		ImageURL: domain.NormalizeCode(data["imageUrl"]),
	}
	if ts, ok := data["createdAt"].(time.Time); ok {
		product.CreatedAt = ts
	}
	if ts, ok := data["updatedAt"].(time.Time); ok {
		product.UpdatedAt = ts
	}
	return product
}
