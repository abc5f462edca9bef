package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"authgate/internal/models"
)

const settingsID = 1

type Settings struct {
	db *gorm.DB
}

// Get returns the singleton settings row, creating it from defaults when
// absent. All reads and writes target the same row.
func (s *Settings) Get(ctx context.Context, defaults models.Setting) (*models.Setting, error) {
	var st models.Setting
	err := s.db.WithContext(ctx).First(&st, "id = ?", settingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		st = defaults
		st.ID = settingsID
		if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
			// Lost the race to another creator; read theirs.
			if isDuplicate(err) {
				err = s.db.WithContext(ctx).First(&st, "id = ?", settingsID).Error
			}
			if err != nil {
				return nil, err
			}
		}
		return &st, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Settings) Save(ctx context.Context, st *models.Setting) error {
	st.ID = settingsID
	st.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(st).Error
}
