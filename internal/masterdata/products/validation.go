package products

import (
	"fmt"
	"strings"

	"github.com/stockledger/stockledger/internal/masterdata/shared"
)

func (s *Service) validate(p *Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: product sku is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Unit) == "" {
		p.Unit = "pcs"
	}
	if p.MinStockLevel < 0 {
		return fmt.Errorf("%w: min stock level cannot be negative", shared.ErrValidation)
	}
	switch p.Status {
	case "":
		p.Status = shared.StatusActive
	case shared.StatusActive, shared.StatusInactive:
	default:
		return fmt.Errorf("%w: status must be active or inactive", shared.ErrValidation)
	}
	return nil
}
