package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence/models"
	"github.com/omnierp/controlplane/pkg/composables"
)

const (
	subscriptionFindQuery = `SELECT id, tenant_id, plan_id, plan_code, status, billing_cycle, price, current_period_start, current_period_end, trial_ends_at, superseded_by_id, created_at, updated_at FROM subscriptions`

	subscriptionModulesQuery = `SELECT subscription_id, module_code, max_entities, removed, activated_at, expires_at FROM subscription_modules WHERE subscription_id = $1 ORDER BY module_code`

	subscriptionAddOnsQuery = `SELECT subscription_id, addon_code, quantity, activated_at, expires_at FROM subscription_add_ons WHERE subscription_id = $1 ORDER BY addon_code`

	subscriptionInsertQuery = `
		INSERT INTO subscriptions (id, tenant_id, plan_id, plan_code, status, billing_cycle, price, current_period_start, current_period_end, trial_ends_at, superseded_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	subscriptionUpdateQuery = `
		UPDATE subscriptions
		SET plan_id = $1, plan_code = $2, status = $3, billing_cycle = $4, price = $5, current_period_start = $6, current_period_end = $7, trial_ends_at = $8, superseded_by_id = $9, updated_at = $10
		WHERE id = $11`

	// Terminal statuses stay queryable for history but never count as the
	// tenant's live subscription.
	nonTerminalFilter = `status NOT IN ('cancelled', 'expired')`
)

type SubscriptionRepository struct{}

func NewSubscriptionRepository() subscription.Repository {
	return &SubscriptionRepository{}
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	subs, err := r.querySubscriptions(ctx, subscriptionFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, subscription.ErrNotFound
	}
	return subs[0], nil
}

func (r *SubscriptionRepository) GetActiveByTenantID(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	query := subscriptionFindQuery + " WHERE tenant_id = $1 AND superseded_by_id IS NULL AND " + nonTerminalFilter + " ORDER BY created_at DESC"
	subs, err := r.querySubscriptions(ctx, query, tenantID.String())
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, subscription.ErrNotFound
	}
	return subs[0], nil
}

func (r *SubscriptionRepository) GetAllByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*subscription.Subscription, error) {
	return r.querySubscriptions(ctx, subscriptionFindQuery+" WHERE tenant_id = $1 ORDER BY created_at DESC", tenantID.String())
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) (*subscription.Subscription, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row, moduleRows, addOnRows := ToDBSubscription(s)
	if _, err := tx.Exec(
		ctx,
		subscriptionInsertQuery,
		row.ID,
		row.TenantID,
		row.PlanID,
		row.PlanCode,
		row.Status,
		row.BillingCycle,
		row.Price,
		row.CurrentPeriodStart,
		row.CurrentPeriodEnd,
		row.TrialEndsAt,
		row.SupersededByID,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "insert subscription")
	}
	if err := r.insertLineItems(ctx, moduleRows, addOnRows); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, s.ID())
}

func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) (*subscription.Subscription, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row, moduleRows, addOnRows := ToDBSubscription(s)
	if _, err := tx.Exec(
		ctx,
		subscriptionUpdateQuery,
		row.PlanID,
		row.PlanCode,
		row.Status,
		row.BillingCycle,
		row.Price,
		row.CurrentPeriodStart,
		row.CurrentPeriodEnd,
		row.TrialEndsAt,
		row.SupersededByID,
		row.UpdatedAt,
		row.ID,
	); err != nil {
		return nil, errors.Wrap(err, "update subscription")
	}

	// Line items are replaced wholesale. They are small and versionless, so a
	// delete-and-reinsert keeps the write path simple.
	if _, err := tx.Exec(ctx, "DELETE FROM subscription_modules WHERE subscription_id = $1", row.ID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM subscription_add_ons WHERE subscription_id = $1", row.ID); err != nil {
		return nil, err
	}
	if err := r.insertLineItems(ctx, moduleRows, addOnRows); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, s.ID())
}

// Supersede writes the replacement and the cancelled predecessor against the
// same transaction so a reader never observes two live subscriptions.
func (r *SubscriptionRepository) Supersede(ctx context.Context, old, replacement *subscription.Subscription) (*subscription.Subscription, error) {
	created, err := r.Create(ctx, replacement)
	if err != nil {
		return nil, err
	}
	if _, err := r.Update(ctx, old); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *SubscriptionRepository) HasNonTerminal(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := tx.QueryRow(
		ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE tenant_id = $1 AND "+nonTerminalFilter,
		tenantID.String(),
	).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SubscriptionRepository) insertLineItems(ctx context.Context, moduleRows []*models.SubscriptionModule, addOnRows []*models.SubscriptionAddOn) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	for _, m := range moduleRows {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO subscription_modules (subscription_id, module_code, max_entities, removed, activated_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.SubscriptionID,
			m.ModuleCode,
			m.MaxEntities,
			m.Removed,
			m.ActivatedAt,
			m.ExpiresAt,
		); err != nil {
			return errors.Wrap(err, "insert subscription module")
		}
	}
	for _, a := range addOnRows {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO subscription_add_ons (subscription_id, addon_code, quantity, activated_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			a.SubscriptionID,
			a.AddOnCode,
			a.Quantity,
			a.ActivatedAt,
			a.ExpiresAt,
		); err != nil {
			return errors.Wrap(err, "insert subscription add-on")
		}
	}
	return nil
}

func (r *SubscriptionRepository) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]*subscription.Subscription, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subRows []*models.Subscription
	for rows.Next() {
		var row models.Subscription
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.PlanID,
			&row.PlanCode,
			&row.Status,
			&row.BillingCycle,
			&row.Price,
			&row.CurrentPeriodStart,
			&row.CurrentPeriodEnd,
			&row.TrialEndsAt,
			&row.SupersededByID,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subRows = append(subRows, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subs := make([]*subscription.Subscription, 0, len(subRows))
	for _, row := range subRows {
		moduleRows, err := r.queryModuleItems(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		addOnRows, err := r.queryAddOnItems(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		s, err := ToDomainSubscription(row, moduleRows, addOnRows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (r *SubscriptionRepository) queryModuleItems(ctx context.Context, subscriptionID string) ([]*models.SubscriptionModule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, subscriptionModulesQuery, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.SubscriptionModule
	for rows.Next() {
		var row models.SubscriptionModule
		if err := rows.Scan(
			&row.SubscriptionID,
			&row.ModuleCode,
			&row.MaxEntities,
			&row.Removed,
			&row.ActivatedAt,
			&row.ExpiresAt,
		); err != nil {
			return nil, err
		}
		items = append(items, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SubscriptionRepository) queryAddOnItems(ctx context.Context, subscriptionID string) ([]*models.SubscriptionAddOn, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, subscriptionAddOnsQuery, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.SubscriptionAddOn
	for rows.Next() {
		var row models.SubscriptionAddOn
		if err := rows.Scan(
			&row.SubscriptionID,
			&row.AddOnCode,
			&row.Quantity,
			&row.ActivatedAt,
			&row.ExpiresAt,
		); err != nil {
			return nil, err
		}
		items = append(items, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
