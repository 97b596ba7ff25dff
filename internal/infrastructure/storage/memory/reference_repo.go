package memory

import (
	"context"
	"strings"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	"procurement/internal/core/numerator"
	"procurement/internal/domain/audit"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	"procurement/internal/domain/workflow"
)

// CatalogRepo implements catalogs.Lookup.
type CatalogRepo struct {
	s *Store
}

var _ catalogs.Lookup = (*CatalogRepo)(nil)

// Seed stores reference records. Supported types are the catalogs model types.
func (r *CatalogRepo) Seed(ctx context.Context, records ...any) error {
	return r.s.write(ctx, func(st *state) error {
		for _, rec := range records {
			switch v := rec.(type) {
			case catalogs.Vendor:
				st.vendors[v.ID] = v
			case catalogs.Currency:
				st.currencies[v.ID] = v
			case catalogs.CreditTerm:
				st.creditTerms[v.ID] = v
			case catalogs.Unit:
				st.units[v.ID] = v
			case catalogs.TaxProfile:
				st.taxProfiles[v.ID] = v
			default:
				return apperror.NewInvalidArgument("unsupported catalog record")
			}
		}
		return nil
	})
}

func (r *CatalogRepo) Vendor(ctx context.Context, vendorID id.ID) (*catalogs.Vendor, error) {
	return lookup(ctx, r.s, "vendor", vendorID, func(st *state) map[id.ID]catalogs.Vendor { return st.vendors })
}

func (r *CatalogRepo) Currency(ctx context.Context, currencyID id.ID) (*catalogs.Currency, error) {
	return lookup(ctx, r.s, "currency", currencyID, func(st *state) map[id.ID]catalogs.Currency { return st.currencies })
}

func (r *CatalogRepo) CreditTerm(ctx context.Context, creditTermID id.ID) (*catalogs.CreditTerm, error) {
	return lookup(ctx, r.s, "credit_term", creditTermID, func(st *state) map[id.ID]catalogs.CreditTerm { return st.creditTerms })
}

func (r *CatalogRepo) Unit(ctx context.Context, unitID id.ID) (*catalogs.Unit, error) {
	return lookup(ctx, r.s, "unit", unitID, func(st *state) map[id.ID]catalogs.Unit { return st.units })
}

func (r *CatalogRepo) TaxProfile(ctx context.Context, taxProfileID id.ID) (*catalogs.TaxProfile, error) {
	return lookup(ctx, r.s, "tax_profile", taxProfileID, func(st *state) map[id.ID]catalogs.TaxProfile { return st.taxProfiles })
}

func lookup[T any](ctx context.Context, s *Store, entity string, key id.ID, table func(*state) map[id.ID]T) (*T, error) {
	var out *T
	err := s.read(ctx, func(st *state) error {
		v, ok := table(st)[key]
		if !ok {
			return apperror.NewNotFound(entity, key)
		}
		out = &v
		return nil
	})
	return out, err
}

// DirectoryRepo implements directory.Directory.
type DirectoryRepo struct {
	s *Store
}

var _ directory.Directory = (*DirectoryRepo)(nil)

// Seed stores user profiles.
func (r *DirectoryRepo) Seed(ctx context.Context, users ...directory.UserProfile) error {
	return r.s.write(ctx, func(st *state) error {
		for _, u := range users {
			st.users[u.ID] = u
		}
		return nil
	})
}

// Resolve implements directory.Directory.
func (r *DirectoryRepo) Resolve(ctx context.Context, userIDs []string) ([]directory.UserProfile, error) {
	var out []directory.UserProfile
	err := r.s.read(ctx, func(st *state) error {
		seen := make(map[string]bool, len(userIDs))
		for _, uid := range userIDs {
			if u, ok := st.users[uid]; ok && !seen[uid] {
				out = append(out, u)
				seen[uid] = true
			}
		}
		return nil
	})
	return out, err
}

// NumberingRepo implements numerator.Store and numerator.PatternSource
// over purchase order numbers.
type NumberingRepo struct {
	s *Store
}

var (
	_ numerator.Store         = (*NumberingRepo)(nil)
	_ numerator.PatternSource = (*NumberingRepo)(nil)
)

// SetPattern overrides the pattern of docType.
func (r *NumberingRepo) SetPattern(ctx context.Context, docType string, p numerator.Pattern) error {
	return r.s.write(ctx, func(st *state) error {
		st.patterns[docType] = p
		return nil
	})
}

// Pattern implements numerator.PatternSource.
func (r *NumberingRepo) Pattern(ctx context.Context, docType string) (numerator.Pattern, bool, error) {
	var (
		p     numerator.Pattern
		found bool
	)
	err := r.s.read(ctx, func(st *state) error {
		p, found = st.patterns[docType]
		return nil
	})
	return p, found, err
}

// Lock implements numerator.Store. Transactions are already serialized.
func (r *NumberingRepo) Lock(ctx context.Context, _ string) error {
	if !r.s.InTransaction(ctx) {
		return ErrNoTransaction
	}
	return nil
}

// LatestNumber implements numerator.Store. Only purchase orders are numbered here.
func (r *NumberingRepo) LatestNumber(ctx context.Context, _ string, prefix, suffix string) (string, error) {
	latest := ""
	err := r.s.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			n := o.PoNo
			if !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, suffix) || len(n) < len(prefix)+len(suffix) {
				continue
			}
			if len(n) > len(latest) || (len(n) == len(latest) && n > latest) {
				latest = n
			}
		}
		return nil
	})
	return latest, err
}

// WorkflowRepo implements workflow.DefinitionSource.
type WorkflowRepo struct {
	s *Store
}

var _ workflow.DefinitionSource = (*WorkflowRepo)(nil)

// Put stores a workflow definition.
func (r *WorkflowRepo) Put(ctx context.Context, def workflow.Definition) error {
	return r.s.write(ctx, func(st *state) error {
		st.workflows[def.ID] = def
		return nil
	})
}

// Definition implements workflow.DefinitionSource.
func (r *WorkflowRepo) Definition(ctx context.Context, workflowID string) (*workflow.Definition, error) {
	var out *workflow.Definition
	err := r.s.read(ctx, func(st *state) error {
		def, ok := st.workflows[workflowID]
		if !ok {
			return apperror.NewNotFound("workflow", workflowID)
		}
		out = &def
		return nil
	})
	return out, err
}

// AuditRepo implements audit.Recorder.
type AuditRepo struct {
	s *Store
}

var _ audit.Recorder = (*AuditRepo)(nil)

// Record implements audit.Recorder.
func (r *AuditRepo) Record(ctx context.Context, entry audit.Entry) error {
	return r.s.write(ctx, func(st *state) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

// Entries returns recorded entries in order.
func (r *AuditRepo) Entries(ctx context.Context) []audit.Entry {
	var out []audit.Entry
	_ = r.s.read(ctx, func(st *state) error {
		out = append(out, st.audit...)
		return nil
	})
	return out
}
