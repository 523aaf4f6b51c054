package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence/models"
	"github.com/omnierp/controlplane/pkg/composables"
)

var (
	ErrPlanNotFound   = fmt.Errorf("plan not found")
	ErrModuleNotFound = fmt.Errorf("module not found")
	ErrAddOnNotFound  = fmt.Errorf("add-on not found")
)

const (
	planFindQuery = `SELECT id, code, name, description, monthly_price, yearly_price, module_codes, max_users, max_storage_gb, max_projects, max_api_calls_month, trial_days, is_active, created_at, updated_at FROM plans`

	moduleFindQuery = `SELECT id, code, name, is_core, monthly_price, yearly_price, depends_on, created_at, updated_at FROM modules`

	addOnFindQuery = `SELECT id, code, name, kind, unit, quantity, requires_module, monthly_price, yearly_price, is_active, created_at, updated_at FROM add_ons`

	userTierFindQuery = `SELECT id, min_users, max_users, price_per_user FROM user_tiers`

	storagePlanFindQuery = `SELECT id, storage_gb, price FROM storage_plans`
)

type PlanRepository struct{}

func NewPlanRepository() plan.Repository {
	return &PlanRepository{}
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	plans, err := r.queryPlans(ctx, planFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrPlanNotFound
	}
	return plans[0], nil
}

func (r *PlanRepository) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	plans, err := r.queryPlans(ctx, planFindQuery+" WHERE code = $1", code)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrPlanNotFound
	}
	return plans[0], nil
}

func (r *PlanRepository) GetAll(ctx context.Context) ([]*plan.Plan, error) {
	return r.queryPlans(ctx, planFindQuery+" ORDER BY code")
}

func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBPlan(p)
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO plans (id, code, name, description, monthly_price, yearly_price, module_codes, max_users, max_storage_gb, max_projects, max_api_calls_month, trial_days, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		row.ID,
		row.Code,
		row.Name,
		row.Description,
		row.MonthlyPrice,
		row.YearlyPrice,
		row.ModuleCodes,
		row.MaxUsers,
		row.MaxStorageGB,
		row.MaxProjects,
		row.MaxAPICallsMonth,
		row.TrialDays,
		row.IsActive,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, p.ID())
}

func (r *PlanRepository) Update(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBPlan(p)
	if _, err := tx.Exec(
		ctx,
		`UPDATE plans
		 SET code = $1, name = $2, description = $3, monthly_price = $4, yearly_price = $5, module_codes = $6, max_users = $7, max_storage_gb = $8, max_projects = $9, max_api_calls_month = $10, trial_days = $11, is_active = $12, updated_at = $13
		 WHERE id = $14`,
		row.Code,
		row.Name,
		row.Description,
		row.MonthlyPrice,
		row.YearlyPrice,
		row.ModuleCodes,
		row.MaxUsers,
		row.MaxStorageGB,
		row.MaxProjects,
		row.MaxAPICallsMonth,
		row.TrialDays,
		row.IsActive,
		row.UpdatedAt,
		row.ID,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, p.ID())
}

func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "DELETE FROM plans WHERE id = $1", id.String())
	return err
}

func (r *PlanRepository) queryPlans(ctx context.Context, query string, args ...interface{}) ([]*plan.Plan, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		var row models.Plan
		if err := rows.Scan(
			&row.ID,
			&row.Code,
			&row.Name,
			&row.Description,
			&row.MonthlyPrice,
			&row.YearlyPrice,
			&row.ModuleCodes,
			&row.MaxUsers,
			&row.MaxStorageGB,
			&row.MaxProjects,
			&row.MaxAPICallsMonth,
			&row.TrialDays,
			&row.IsActive,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p, err := ToDomainPlan(&row)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

type ModuleRepository struct{}

func NewModuleRepository() module.Repository {
	return &ModuleRepository{}
}

func (r *ModuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*module.Module, error) {
	mods, err := r.queryModules(ctx, moduleFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, ErrModuleNotFound
	}
	return mods[0], nil
}

func (r *ModuleRepository) GetByCode(ctx context.Context, code string) (*module.Module, error) {
	mods, err := r.queryModules(ctx, moduleFindQuery+" WHERE code = $1", code)
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, ErrModuleNotFound
	}
	return mods[0], nil
}

func (r *ModuleRepository) GetAll(ctx context.Context) ([]*module.Module, error) {
	return r.queryModules(ctx, moduleFindQuery+" ORDER BY code")
}

func (r *ModuleRepository) Create(ctx context.Context, m *module.Module) (*module.Module, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBModule(m)
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO modules (id, code, name, is_core, monthly_price, yearly_price, depends_on, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID,
		row.Code,
		row.Name,
		row.IsCore,
		row.MonthlyPrice,
		row.YearlyPrice,
		row.DependsOn,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, m.ID())
}

func (r *ModuleRepository) Update(ctx context.Context, m *module.Module) (*module.Module, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBModule(m)
	if _, err := tx.Exec(
		ctx,
		`UPDATE modules
		 SET code = $1, name = $2, is_core = $3, monthly_price = $4, yearly_price = $5, depends_on = $6, updated_at = $7
		 WHERE id = $8`,
		row.Code,
		row.Name,
		row.IsCore,
		row.MonthlyPrice,
		row.YearlyPrice,
		row.DependsOn,
		row.UpdatedAt,
		row.ID,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, m.ID())
}

func (r *ModuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "DELETE FROM modules WHERE id = $1", id.String())
	return err
}

func (r *ModuleRepository) queryModules(ctx context.Context, query string, args ...interface{}) ([]*module.Module, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []*module.Module
	for rows.Next() {
		var row models.Module
		if err := rows.Scan(
			&row.ID,
			&row.Code,
			&row.Name,
			&row.IsCore,
			&row.MonthlyPrice,
			&row.YearlyPrice,
			&row.DependsOn,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m, err := ToDomainModule(&row)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mods, nil
}

type AddOnRepository struct{}

func NewAddOnRepository() addon.Repository {
	return &AddOnRepository{}
}

func (r *AddOnRepository) GetByID(ctx context.Context, id uuid.UUID) (*addon.AddOn, error) {
	addOns, err := r.queryAddOns(ctx, addOnFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(addOns) == 0 {
		return nil, ErrAddOnNotFound
	}
	return addOns[0], nil
}

func (r *AddOnRepository) GetByCode(ctx context.Context, code string) (*addon.AddOn, error) {
	addOns, err := r.queryAddOns(ctx, addOnFindQuery+" WHERE code = $1", code)
	if err != nil {
		return nil, err
	}
	if len(addOns) == 0 {
		return nil, ErrAddOnNotFound
	}
	return addOns[0], nil
}

func (r *AddOnRepository) GetByCodes(ctx context.Context, codes []string) ([]*addon.AddOn, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return r.queryAddOns(ctx, addOnFindQuery+" WHERE code = ANY($1) ORDER BY code", codes)
}

func (r *AddOnRepository) GetAll(ctx context.Context) ([]*addon.AddOn, error) {
	return r.queryAddOns(ctx, addOnFindQuery+" ORDER BY code")
}

func (r *AddOnRepository) Create(ctx context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBAddOn(a)
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO add_ons (id, code, name, kind, unit, quantity, requires_module, monthly_price, yearly_price, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		row.ID,
		row.Code,
		row.Name,
		row.Kind,
		row.Unit,
		row.Quantity,
		row.RequiresModule,
		row.MonthlyPrice,
		row.YearlyPrice,
		row.IsActive,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, a.ID())
}

func (r *AddOnRepository) Update(ctx context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := ToDBAddOn(a)
	if _, err := tx.Exec(
		ctx,
		`UPDATE add_ons
		 SET code = $1, name = $2, kind = $3, unit = $4, quantity = $5, requires_module = $6, monthly_price = $7, yearly_price = $8, is_active = $9, updated_at = $10
		 WHERE id = $11`,
		row.Code,
		row.Name,
		row.Kind,
		row.Unit,
		row.Quantity,
		row.RequiresModule,
		row.MonthlyPrice,
		row.YearlyPrice,
		row.IsActive,
		row.UpdatedAt,
		row.ID,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, a.ID())
}

func (r *AddOnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "DELETE FROM add_ons WHERE id = $1", id.String())
	return err
}

func (r *AddOnRepository) queryAddOns(ctx context.Context, query string, args ...interface{}) ([]*addon.AddOn, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addOns []*addon.AddOn
	for rows.Next() {
		var row models.AddOn
		if err := rows.Scan(
			&row.ID,
			&row.Code,
			&row.Name,
			&row.Kind,
			&row.Unit,
			&row.Quantity,
			&row.RequiresModule,
			&row.MonthlyPrice,
			&row.YearlyPrice,
			&row.IsActive,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a, err := ToDomainAddOn(&row)
		if err != nil {
			return nil, err
		}
		addOns = append(addOns, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return addOns, nil
}

type TierRepository struct{}

func NewTierRepository() tier.Repository {
	return &TierRepository{}
}

func (r *TierRepository) UserTiers(ctx context.Context) ([]*tier.UserTier, error) {
	return r.queryUserTiers(ctx, userTierFindQuery+" ORDER BY min_users")
}

func (r *TierRepository) UserTierForCount(ctx context.Context, users int64) (*tier.UserTier, error) {
	tiers, err := r.queryUserTiers(ctx, userTierFindQuery+" WHERE min_users <= $1 AND max_users >= $1", users)
	if err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return nil, tier.ErrUserTierNotFound
	}
	return tiers[0], nil
}

func (r *TierRepository) StoragePlans(ctx context.Context) ([]*tier.StoragePlan, error) {
	return r.queryStoragePlans(ctx, storagePlanFindQuery+" ORDER BY storage_gb")
}

func (r *TierRepository) StoragePlanByID(ctx context.Context, id uuid.UUID) (*tier.StoragePlan, error) {
	plans, err := r.queryStoragePlans(ctx, storagePlanFindQuery+" WHERE id = $1", id.String())
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, tier.ErrStoragePlanNotFound
	}
	return plans[0], nil
}

func (r *TierRepository) queryUserTiers(ctx context.Context, query string, args ...interface{}) ([]*tier.UserTier, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []*tier.UserTier
	for rows.Next() {
		var row models.UserTier
		if err := rows.Scan(&row.ID, &row.MinUsers, &row.MaxUsers, &row.PricePerUser); err != nil {
			return nil, err
		}
		t, err := ToDomainUserTier(&row)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *TierRepository) queryStoragePlans(ctx context.Context, query string, args ...interface{}) ([]*tier.StoragePlan, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*tier.StoragePlan
	for rows.Next() {
		var row models.StoragePlan
		if err := rows.Scan(&row.ID, &row.StorageGB, &row.Price); err != nil {
			return nil, err
		}
		p, err := ToDomainStoragePlan(&row)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}
