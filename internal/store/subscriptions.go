package store

import (
	"context"

	"gorm.io/gorm/clause"

	"printcost-backend/internal/model"
)

// SaveSubscription creates or re-binds a push subscription to sub.UserID.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

func (s *gormStore) GetSubscription(ctx context.Context, userID, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ? AND user_id = ?", endpoint, userID).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, userID, endpoint string) error {
	return s.db.WithContext(ctx).Where("endpoint = ? AND user_id = ?", endpoint, userID).Delete(&model.PushSubscription{}).Error
}

// DeleteSubscriptionByEndpoint drops a subscription the push service reported as gone.
func (s *gormStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
}
