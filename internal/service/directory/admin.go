package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/protomem/district-tasks/internal/access"
	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/validator"
)

func (s *Service) ListDistricts(ctx context.Context) ([]model.District, error) {
	return s.districts.Find(ctx)
}

func (s *Service) ListPositions(ctx context.Context) ([]model.Position, error) {
	return s.positions.Find(ctx, database.FindPositionFilter{})
}

func (s *Service) CreateDistrict(ctx context.Context, name, code string) (model.District, *validator.Validator, error) {
	v := new(validator.Validator)

	name, code = strings.TrimSpace(name), strings.TrimSpace(code)
	validateDistrict(v, name, code)
	if v.HasErrors() {
		return model.District{}, v, nil
	}

	id, err := s.districts.Insert(ctx, database.InsertDistrictDTO{Name: name, Code: code})
	if err != nil {
		if errors.Is(err, model.ErrExists) {
			v.AddError("district with this name or code already exists")
			return model.District{}, v, nil
		}
		return model.District{}, nil, err
	}

	district, err := s.districts.Get(ctx, id)
	if err != nil {
		return model.District{}, nil, err
	}

	s.logger.Info("district created", "districtId", id, "code", code)

	return district, v, nil
}

func (s *Service) UpdateDistrict(ctx context.Context, id model.ID, name, code string) (model.District, *validator.Validator, error) {
	v := new(validator.Validator)

	name, code = strings.TrimSpace(name), strings.TrimSpace(code)
	validateDistrict(v, name, code)
	if v.HasErrors() {
		return model.District{}, v, nil
	}

	err := s.districts.Update(ctx, id, database.UpdateDistrictDTO{Name: &name, Code: &code})
	if err != nil {
		if errors.Is(err, model.ErrExists) {
			v.AddError("district with this name or code already exists")
			return model.District{}, v, nil
		}
		return model.District{}, nil, err
	}

	district, err := s.districts.Get(ctx, id)
	if err != nil {
		return model.District{}, nil, err
	}

	return district, v, nil
}

// DeleteDistrict always refuses: districts are reference data.
func (s *Service) DeleteDistrict(ctx context.Context, actor model.User, id model.ID) error {
	if _, err := s.districts.Get(ctx, id); err != nil {
		return err
	}
	if access.SubjectOf(actor).CanDeleteDistrict() {
		return errors.New("directory: district deletion is not implemented")
	}
	return ErrNotPermitted
}

func validateDistrict(v *validator.Validator, name, code string) {
	v.CheckField(validator.NotBlank(name), "name", "cannot be blank")
	v.CheckField(validator.MaxRunes(name, 100), "name", "must not be more than 100 characters")
	v.CheckField(validator.NotBlank(code), "code", "cannot be blank")
	v.CheckField(validator.MaxRunes(code, 10), "code", "must not be more than 10 characters")
}

type PositionInput struct {
	Title       string
	Description string
	// Capabilities overrides resolution from the title when non-nil.
	Capabilities []string
}

// CreatePosition stores a position with its capabilities resolved from the
// title unless given explicitly.
func (s *Service) CreatePosition(ctx context.Context, in PositionInput) (model.Position, *validator.Validator, error) {
	v := new(validator.Validator)

	title := strings.TrimSpace(in.Title)
	v.CheckField(validator.NotBlank(title), "title", "cannot be blank")
	v.CheckField(validator.MaxRunes(title, 100), "title", "must not be more than 100 characters")

	capabilities := access.Resolve(title)
	if in.Capabilities != nil {
		set, unknown := access.Parse(in.Capabilities)
		v.CheckField(len(unknown) == 0, "capabilities", "unknown capability: "+strings.Join(unknown, ", "))
		capabilities = set
	}

	if v.HasErrors() {
		return model.Position{}, v, nil
	}

	id, err := s.positions.Insert(ctx, database.InsertPositionDTO{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Capabilities: capabilities.Strings(),
	})
	if err != nil {
		if errors.Is(err, model.ErrExists) {
			v.AddFieldError("title", "position with this title already exists")
			return model.Position{}, v, nil
		}
		return model.Position{}, nil, err
	}

	position, err := s.positions.Get(ctx, id)
	if err != nil {
		return model.Position{}, nil, err
	}

	s.logger.Info("position created", "positionId", id, "capabilities", position.Capabilities)

	return position, v, nil
}
