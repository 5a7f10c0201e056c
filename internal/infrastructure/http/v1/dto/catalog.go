package dto

import (
	"acmesync/internal/core/apperror"
	"acmesync/internal/core/types"
	"acmesync/internal/domain/client"
	"acmesync/internal/domain/product"
)

// --- Clients ---

// UpsertClientRequest is the request body for PUT /clients.
type UpsertClientRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" binding:"required"`
	Document *string `json:"document"`
	Email    *string `json:"email"`
}

// ToInput converts the DTO to a service input.
func (r *UpsertClientRequest) ToInput() client.UpsertInput {
	return client.UpsertInput{
		ID:       r.ID,
		Name:     r.Name,
		Document: r.Document,
		Email:    r.Email,
	}
}

// --- Products ---

// UpsertProductRequest is the request body for PUT /products.
// Price comes in as a string so the decimal never passes through a float.
type UpsertProductRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Price       string  `json:"price"`
	Active      *bool   `json:"active"`
}

// ToInput converts the DTO to a service input.
func (r *UpsertProductRequest) ToInput() (product.UpsertInput, error) {
	price := types.ZeroMoney()
	if r.Price != "" {
		var err error
		price, err = types.MoneyFromString(r.Price)
		if err != nil {
			return product.UpsertInput{}, apperror.NewValidation("invalid price").
				WithDetail("field", "price").
				WithDetail("value", r.Price)
		}
	}
	return product.UpsertInput{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       price,
		Active:      r.Active,
	}, nil
}
