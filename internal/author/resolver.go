package author

import (
	"context"
	"sort"
	"strings"

	"github.com/bikestra/paper-tracker/internal/domain"
)

// Store is the narrow view of author storage the resolver needs. Lookups
// return nil (or an empty slice) when nothing matches.
type Store interface {
	FindByORCID(ctx context.Context, userID uint64, orcid string) (*domain.Author, error)
	FindBySourceID(ctx context.Context, userID uint64, sourceID string) (*domain.Author, error)
	FindBySlug(ctx context.Context, userID uint64, slug string) ([]domain.Author, error)
	FindByName(ctx context.Context, userID uint64, name string) ([]domain.Author, error)
	Create(ctx context.Context, a *domain.Author) error
	Update(ctx context.Context, a *domain.Author) error
}

// Ref is a resolved author at its position in a paper's author list.
type Ref struct {
	Author   domain.Author
	Position int
	Created  bool
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve matches each descriptor against the user's authors, creating the
// missing ones. Priority is ORCID, then source id (with slug enrichment), then
// exact display name. Descriptors whose name folds to an empty slug are
// dropped, and an author listed twice keeps its first position. Positions in
// the result are contiguous from 0.
func (r *Resolver) Resolve(ctx context.Context, userID uint64, descriptors []domain.AuthorDescriptor) ([]Ref, error) {
	refs := make([]Ref, 0, len(descriptors))
	seen := make(map[uint64]bool, len(descriptors))

	for _, d := range descriptors {
		d = clean(d)
		slug := NameSlug(d.Name)
		if slug == "" {
			continue
		}

		a, created, err := r.resolveOne(ctx, userID, d, slug)
		if err != nil {
			return nil, err
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		refs = append(refs, Ref{Author: *a, Position: len(refs), Created: created})
	}
	return refs, nil
}

func (r *Resolver) resolveOne(ctx context.Context, userID uint64, d domain.AuthorDescriptor, slug string) (*domain.Author, bool, error) {
	if d.ORCID != "" {
		a, err := r.store.FindByORCID(ctx, userID, d.ORCID)
		if err != nil {
			return nil, false, err
		}
		if a != nil {
			if err := r.enrichSourceID(ctx, userID, a, d.SourceID); err != nil {
				return nil, false, err
			}
			return a, false, nil
		}
	}

	if d.SourceID != "" {
		a, err := r.store.FindBySourceID(ctx, userID, d.SourceID)
		if err != nil {
			return nil, false, err
		}
		if a != nil {
			if err := r.enrichORCID(ctx, a, d.ORCID); err != nil {
				return nil, false, err
			}
			return a, false, nil
		}

		candidates, err := r.store.FindBySlug(ctx, userID, slug)
		if err != nil {
			return nil, false, err
		}
		// only records without a source id may be enriched with one
		if a := pick(candidates, d, func(c domain.Author) bool { return c.SourceID == nil }); a != nil {
			a.SourceID = strPtr(d.SourceID)
			if a.ORCID == nil && d.ORCID != "" {
				a.ORCID = strPtr(d.ORCID)
			}
			if err := r.store.Update(ctx, a); err != nil {
				return nil, false, err
			}
			return a, false, nil
		}
		return r.create(ctx, userID, d, slug)
	}

	candidates, err := r.store.FindByName(ctx, userID, d.Name)
	if err != nil {
		return nil, false, err
	}
	if a := pick(candidates, d, nil); a != nil {
		if err := r.enrichORCID(ctx, a, d.ORCID); err != nil {
			return nil, false, err
		}
		return a, false, nil
	}
	return r.create(ctx, userID, d, slug)
}

func (r *Resolver) create(ctx context.Context, userID uint64, d domain.AuthorDescriptor, slug string) (*domain.Author, bool, error) {
	a := &domain.Author{
		UserID:   userID,
		Name:     d.Name,
		Slug:     slug,
		ORCID:    strPtr(d.ORCID),
		SourceID: strPtr(d.SourceID),
	}
	if err := r.store.Create(ctx, a); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (r *Resolver) enrichORCID(ctx context.Context, a *domain.Author, orcid string) error {
	if a.ORCID != nil || orcid == "" {
		return nil
	}
	a.ORCID = strPtr(orcid)
	return r.store.Update(ctx, a)
}

func (r *Resolver) enrichSourceID(ctx context.Context, userID uint64, a *domain.Author, sourceID string) error {
	if a.SourceID != nil || sourceID == "" {
		return nil
	}
	owner, err := r.store.FindBySourceID(ctx, userID, sourceID)
	if err != nil || owner != nil {
		return err
	}
	a.SourceID = strPtr(sourceID)
	return r.store.Update(ctx, a)
}

// pick chooses among weak (slug or name) matches. Records whose identifiers
// contradict the descriptor are never reused. Records with no identifiers win,
// then the lowest id, so repeated resolution lands on the same row.
func pick(candidates []domain.Author, d domain.AuthorDescriptor, allow func(domain.Author) bool) *domain.Author {
	var usable []domain.Author
	for _, c := range candidates {
		if allow != nil && !allow(c) {
			continue
		}
		if conflicts(c, d) {
			continue
		}
		usable = append(usable, c)
	}
	if len(usable) == 0 {
		return nil
	}

	sort.SliceStable(usable, func(i, j int) bool {
		bi, bj := bare(usable[i]), bare(usable[j])
		if bi != bj {
			return bi
		}
		return usable[i].ID < usable[j].ID
	})
	chosen := usable[0]
	return &chosen
}

func conflicts(c domain.Author, d domain.AuthorDescriptor) bool {
	if d.ORCID != "" && c.ORCID != nil && *c.ORCID != d.ORCID {
		return true
	}
	if d.SourceID != "" && c.SourceID != nil && *c.SourceID != d.SourceID {
		return true
	}
	return false
}

func bare(a domain.Author) bool {
	return a.ORCID == nil && a.SourceID == nil
}

func clean(d domain.AuthorDescriptor) domain.AuthorDescriptor {
	return domain.AuthorDescriptor{
		Name:     strings.Join(strings.Fields(d.Name), " "),
		SourceID: strings.TrimSpace(d.SourceID),
		ORCID:    strings.TrimSpace(d.ORCID),
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
