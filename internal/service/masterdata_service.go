package service

import (
	"context"

	"packline/internal/dto"
	"packline/internal/model"
	"packline/internal/repository"

	"github.com/google/uuid"
)

// MasterDataService exposes the read-only product and supplier views backing
// the stock UI pickers. Writes live in the catalogue and partner services.
type MasterDataService interface {
	ListProducts(ctx context.Context) ([]dto.ProductResponse, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	ListSuppliers(ctx context.Context) ([]dto.SupplierResponse, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (*dto.SupplierResponse, error)
}

type masterDataService struct {
	products  repository.ProductRepository
	suppliers repository.SupplierRepository
}

func NewMasterDataService(products repository.ProductRepository, suppliers repository.SupplierRepository) MasterDataService {
	return &masterDataService{products: products, suppliers: suppliers}
}

func (s *masterDataService) ListProducts(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, *productToResponse(&products[i]))
	}
	return out, nil
}

func (s *masterDataService) GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return productToResponse(p), nil
}

func (s *masterDataService) ListSuppliers(ctx context.Context) ([]dto.SupplierResponse, error) {
	suppliers, err := s.suppliers.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		out = append(out, *supplierToResponse(&suppliers[i]))
	}
	return out, nil
}

func (s *masterDataService) GetSupplier(ctx context.Context, id uuid.UUID) (*dto.SupplierResponse, error) {
	sup, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return supplierToResponse(sup), nil
}

func productToResponse(p *model.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:       p.ID.String(),
		Name:     p.Name,
		Style:    p.Style,
		Category: p.Category,
		IsActive: p.IsActive,
	}
}

func supplierToResponse(s *model.Supplier) *dto.SupplierResponse {
	return &dto.SupplierResponse{
		ID:       s.ID.String(),
		Name:     s.Name,
		TaxID:    s.TaxID,
		Email:    s.Email,
		IsActive: s.IsActive,
	}
}
