package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var extensionCodePattern = regexp.MustCompile(`^[0-9]{3}$`)

// ExtensionService manages a tenant's own extensions.
type ExtensionService struct {
	repo     Repository
	registry *Registry
	now      func() time.Time
}

func NewExtensionService(repo Repository, registry *Registry) *ExtensionService {
	return &ExtensionService{repo: repo, registry: registry, now: time.Now}
}

type ExtensionInput struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	AssignedNumber string `json:"assigned_number"`
	ForwardTarget  string `json:"forward_target"`
}

// ExtensionPatch carries optional updates; nil fields are left unchanged.
type ExtensionPatch struct {
	Name           *string `json:"name"`
	Department     *string `json:"department"`
	AssignedNumber *string `json:"assigned_number"`
	ForwardTarget  *string `json:"forward_target"`
	Active         *bool   `json:"active"`
}

func (s *ExtensionService) Create(ctx context.Context, tenantID string, in ExtensionInput) (Extension, error) {
	now := s.now().UTC()
	e := Extension{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Code:           strings.TrimSpace(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Department:     strings.TrimSpace(in.Department),
		AssignedNumber: strings.TrimSpace(in.AssignedNumber),
		ForwardTarget:  strings.TrimSpace(in.ForwardTarget),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !extensionCodePattern.MatchString(e.Code) {
		return Extension{}, fmt.Errorf("%w: code must be exactly three digits", ErrInvalidArgument)
	}
	if err := s.validate(ctx, e); err != nil {
		return Extension{}, err
	}

	if _, err := s.repo.ExtensionByCode(ctx, tenantID, e.Code); err == nil {
		return Extension{}, ErrDuplicateExtension
	} else if !errors.Is(err, ErrNotFound) {
		return Extension{}, err
	}
	if err := s.repo.InsertExtension(ctx, e); err != nil {
		return Extension{}, err
	}
	return e, nil
}

func (s *ExtensionService) List(ctx context.Context, tenantID string) ([]Extension, error) {
	return s.repo.ListExtensions(ctx, tenantID, false)
}

func (s *ExtensionService) Get(ctx context.Context, tenantID, code string) (Extension, error) {
	return s.repo.ExtensionByCode(ctx, tenantID, code)
}

func (s *ExtensionService) Update(ctx context.Context, tenantID, code string, p ExtensionPatch) (Extension, error) {
	e, err := s.repo.ExtensionByCode(ctx, tenantID, code)
	if err != nil {
		return Extension{}, err
	}
	if p.Name != nil {
		e.Name = strings.TrimSpace(*p.Name)
	}
	if p.Department != nil {
		e.Department = strings.TrimSpace(*p.Department)
	}
	if p.AssignedNumber != nil {
		e.AssignedNumber = strings.TrimSpace(*p.AssignedNumber)
	}
	if p.ForwardTarget != nil {
		e.ForwardTarget = strings.TrimSpace(*p.ForwardTarget)
	}
	if p.Active != nil {
		e.Active = *p.Active
	}
	if err := s.validate(ctx, e); err != nil {
		return Extension{}, err
	}
	e.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateExtension(ctx, e); err != nil {
		return Extension{}, err
	}
	return e, nil
}

// Deactivate soft-deletes an extension. The code stays reserved.
func (s *ExtensionService) Deactivate(ctx context.Context, tenantID, code string) (Extension, error) {
	off := false
	return s.Update(ctx, tenantID, code, ExtensionPatch{Active: &off})
}

func (s *ExtensionService) validate(ctx context.Context, e Extension) error {
	if e.Name == "" && e.Department == "" {
		return fmt.Errorf("%w: name or department is required", ErrInvalidArgument)
	}
	if e.ForwardTarget != "" && !ValidE164(e.ForwardTarget) {
		return fmt.Errorf("%w: forward_target must be E.164", ErrInvalidArgument)
	}
	if e.AssignedNumber == "" || !e.Active {
		return nil
	}
	if _, err := s.registry.OwnedNumber(ctx, e.TenantID, e.AssignedNumber); err != nil {
		return err
	}
	other, err := s.repo.ExtensionByAssignedNumber(ctx, e.TenantID, e.AssignedNumber)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.Code != e.Code:
		return fmt.Errorf("%w: number already assigned to extension %s", ErrInvalidArgument, other.Code)
	}
	return nil
}
