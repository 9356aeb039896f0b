package service

import (
	"context"
	"errors"

	"profilereg/internal/notify"
	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/sentinel"
)

// GetField returns the value stored under name for owner. Fields outlive
// a soft delete and stay readable.
func (s *Service) GetField(ctx context.Context, owner id.Principal, name string) (models.FieldValue, bool, error) {
	field, err := models.ParseFieldName(name)
	if err != nil {
		return models.FieldValue{}, false, err
	}
	var (
		v  models.FieldValue
		ok bool
	)
	err = s.query(ctx, "get_field", []any{"owner", owner, "field", name}, func(ctx context.Context, u *unit) error {
		got, err := u.ledger.Field(ctx, owner, field)
		if errors.Is(err, sentinel.ErrNotFound) {
			v, ok = models.FieldValue{}, false
			return nil
		}
		if err != nil {
			return storageErr(err, "failed to load field")
		}
		v, ok = got, true
		return nil
	})
	if err != nil {
		return models.FieldValue{}, false, err
	}
	return v, ok, nil
}

// GetFields returns the present subset of names. Duplicate names collapse.
func (s *Service) GetFields(ctx context.Context, owner id.Principal, names []string) (map[models.FieldName]models.FieldValue, error) {
	fields := make([]models.FieldName, 0, len(names))
	for _, n := range names {
		f, err := models.ParseFieldName(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	var out map[models.FieldName]models.FieldValue
	err := s.query(ctx, "get_fields", []any{"owner", owner}, func(ctx context.Context, u *unit) error {
		out = make(map[models.FieldName]models.FieldValue, len(fields))
		for _, f := range fields {
			if _, seen := out[f]; seen {
				continue
			}
			v, err := u.ledger.Field(ctx, owner, f)
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			if err != nil {
				return storageErr(err, "failed to load field")
			}
			out[f] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetField overwrites one field of the caller's profile. Preconditions
// match SetDisplayName; a malformed name or empty value aborts with
// InvalidField before storage is touched.
func (s *Service) SetField(ctx context.Context, name string, value models.FieldValue, caller id.Principal) error {
	attrs := []any{"caller", caller, "field", name}
	err := s.run(ctx, "set_field", attrs, func(ctx context.Context, u *unit) error {
		if err := s.authz.RequireAuth(ctx, caller); err != nil {
			return err
		}
		field, err := models.ParseFieldName(name)
		if err != nil {
			return err
		}
		if value.IsZero() {
			return dErrors.New(dErrors.CodeInvalidField, "field value is required")
		}
		p, err := loadProfile(ctx, u, caller)
		if err != nil {
			return err
		}
		if err := p.CanMutate(caller); err != nil {
			return err
		}
		if err := u.ledger.PutField(ctx, caller, field, value); err != nil {
			return storageErr(err, "failed to store field")
		}
		u.emit(notify.ProfileUpdated(caller, field, u.now))
		return nil
	})
	if err == nil {
		s.logChange(ctx, "profile field set", "caller", caller, "field", name, "kind", value.Kind())
	}
	return err
}

func (s *Service) SetStringField(ctx context.Context, name, value string, caller id.Principal) error {
	return s.SetField(ctx, name, models.StringValue(value), caller)
}

func (s *Service) SetIntField(ctx context.Context, name string, value models.Int128, caller id.Principal) error {
	return s.SetField(ctx, name, models.IntValue(value), caller)
}

func (s *Service) SetBoolField(ctx context.Context, name string, value bool, caller id.Principal) error {
	return s.SetField(ctx, name, models.BoolValue(value), caller)
}

func (s *Service) SetAddressField(ctx context.Context, name string, value, caller id.Principal) error {
	return s.SetField(ctx, name, models.AddressValue(value), caller)
}

func (s *Service) SetBytesField(ctx context.Context, name string, value []byte, caller id.Principal) error {
	return s.SetField(ctx, name, models.BytesValue(value), caller)
}

// RemoveField deletes one field of the caller's profile. Removing an
// absent field succeeds without effect.
func (s *Service) RemoveField(ctx context.Context, name string, caller id.Principal) error {
	attrs := []any{"caller", caller, "field", name}
	err := s.run(ctx, "remove_field", attrs, func(ctx context.Context, u *unit) error {
		if err := s.authz.RequireAuth(ctx, caller); err != nil {
			return err
		}
		field, err := models.ParseFieldName(name)
		if err != nil {
			return err
		}
		p, err := loadProfile(ctx, u, caller)
		if err != nil {
			return err
		}
		if err := p.CanMutate(caller); err != nil {
			return err
		}
		return storageErr(u.ledger.RemoveField(ctx, caller, field), "failed to remove field")
	})
	if err == nil {
		s.logChange(ctx, "profile field removed", "caller", caller, "field", name)
	}
	return err
}
