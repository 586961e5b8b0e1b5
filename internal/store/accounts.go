package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"printcost-backend/internal/model"
)

func (s *gormStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	if err := s.db.WithContext(ctx).Order("name").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

func (s *gormStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var company model.Company
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, translate(err)
	}
	return &company, nil
}

// RegisterCompany creates a company together with its first admin. Company names and emails are
// compared case-insensitively.
func (s *gormStore) RegisterCompany(ctx context.Context, name string, admin *model.User) (*model.Company, error) {
	company := model.Company{Name: strings.TrimSpace(name)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Company{}).Where("LOWER(name) = LOWER(?)", company.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("company %q: %w", company.Name, ErrConflict)
		}
		if err := emailAvailable(tx, admin.Email); err != nil {
			return err
		}

		if err := tx.Create(&company).Error; err != nil {
			return translate(err)
		}
		admin.CompanyID = &company.ID
		admin.Role = model.RoleAdmin
		return translate(tx.Create(admin).Error)
	})
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// CreateUser inserts u after checking that the email is unused and the username is free within
// the user's company.
func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := emailAvailable(tx, u.Email); err != nil {
			return err
		}
		var n int64
		q := tx.Model(&model.User{}).Where("LOWER(username) = LOWER(?)", u.Username)
		if u.CompanyID == nil {
			q = q.Where("company_id IS NULL")
		} else {
			q = q.Where("company_id = ?", *u.CompanyID)
		}
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("username %q: %w", u.Username, ErrConflict)
		}
		return translate(tx.Create(u).Error)
	})
}

func emailAvailable(tx *gorm.DB, email string) error {
	var n int64
	if err := tx.Model(&model.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("email %q: %w", email, ErrConflict)
	}
	return nil
}

func (s *gormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindUserByLogin matches identifier against email or username, ignoring case.
func (s *gormStore) FindUserByLogin(ctx context.Context, identifier string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", identifier, identifier).
		Order("created_at").
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpdateUser saves profile and password changes. A username already used by someone else in the
// same company yields ErrConflict.
func (s *gormStore) UpdateUser(ctx context.Context, u *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		q := tx.Model(&model.User{}).Where("LOWER(username) = LOWER(?) AND id <> ?", u.Username, u.ID)
		if u.CompanyID == nil {
			q = q.Where("company_id IS NULL")
		} else {
			q = q.Where("company_id = ?", *u.CompanyID)
		}
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("username %q: %w", u.Username, ErrConflict)
		}
		return translate(tx.Model(u).Select("username", "phone_number", "dob", "password_hash", "profile_picture_path").Updates(u).Error)
	})
}

func (s *gormStore) CreateAuthToken(ctx context.Context, t *model.AuthToken) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *gormStore) FindAuthToken(ctx context.Context, tokenHash string) (*model.AuthToken, error) {
	var t model.AuthToken
	if err := s.db.WithContext(ctx).Preload("User").Where("token_hash = ?", tokenHash).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *gormStore) DeleteAuthToken(ctx context.Context, tokenHash string) error {
	return s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&model.AuthToken{}).Error
}
